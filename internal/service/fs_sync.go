package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"rag-web-go/internal/model"
	"rag-web-go/internal/repository"
	"rag-web-go/pkg/log"
)

// SyncFilesystemToDatabase 在启动时把既有的文件系统布局同步进数据库：
// knowledge_bases 目录下的子目录收编为知识库，uploads 目录下的孤儿文件
// 按 "{知识库}_" 前缀推断归属后补登记。同步是幂等的，单项失败只记日志。
func SyncFilesystemToDatabase(kbRepo repository.KnowledgeBaseRepository, fileRepo repository.FileRepository, kbDir, uploadsDir string) {
	log.Info("[FsSync] 同步文件系统到数据库...")

	for _, dir := range []string{kbDir, uploadsDir} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			log.Errorf("[FsSync] 创建目录失败: %s, err: %v", dir, err)
		}
	}

	syncKnowledgeBases(kbRepo, kbDir)
	syncUploadedFiles(kbRepo, fileRepo, uploadsDir)

	log.Info("[FsSync] 文件系统同步完成")
}

func syncKnowledgeBases(kbRepo repository.KnowledgeBaseRepository, kbDir string) {
	entries, err := os.ReadDir(kbDir)
	if err != nil {
		log.Warnf("[FsSync] 读取知识库目录失败: %v", err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, err := kbRepo.GetByName(name); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			log.Warnf("[FsSync] 检查知识库失败 %s: %v", name, err)
			continue
		}
		kb := &model.KnowledgeBase{Name: name, Path: filepath.Join(kbDir, name)}
		if err := kbRepo.Create(kb); err != nil {
			log.Warnf("[FsSync] 同步知识库失败 %s: %v", name, err)
			continue
		}
		log.Infof("[FsSync] 同步知识库到数据库: %s", name)
	}
}

func syncUploadedFiles(kbRepo repository.KnowledgeBaseRepository, fileRepo repository.FileRepository, uploadsDir string) {
	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		log.Warnf("[FsSync] 读取上传目录失败: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		safe := entry.Name()
		if _, err := fileRepo.GetBySafeFilename(safe); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			log.Warnf("[FsSync] 检查文件失败 %s: %v", safe, err)
			continue
		}

		// 存储标识约定为 {知识库}_{hex}{ext}，据此推断归属
		idx := strings.Index(safe, "_")
		if idx <= 0 {
			log.Warnf("[FsSync] 跳过无法推断知识库的文件: %s", safe)
			continue
		}
		kbName := safe[:idx]
		if _, err := kbRepo.GetByName(kbName); err != nil {
			log.Warnf("[FsSync] 跳过文件（知识库不存在）: %s", safe)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warnf("[FsSync] 读取文件信息失败 %s: %v", safe, err)
			continue
		}
		record := &model.FileMetadata{
			SafeFilename: safe,
			// 原始文件名无从恢复，至少保留记录
			OriginalFilename: safe,
			KnowledgeBase:    kbName,
			FilePath:         filepath.Join(uploadsDir, safe),
			Size:             info.Size(),
			UploadTime:       info.ModTime(),
			Status:           model.StatusUploaded,
			Progress:         0,
		}
		if err := fileRepo.Create(record); err != nil {
			log.Warnf("[FsSync] 同步文件失败 %s: %v", safe, err)
			continue
		}
		log.Infof("[FsSync] 同步文件到数据库: %s", safe)
	}
}
