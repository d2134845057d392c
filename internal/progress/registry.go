// Package progress 维护本进程内的文档处理进度登记表。
// 登记表是纯观测性的：最后写入覆盖、不持久化、进程重启即丢失。
// RAG 服务进程内还有一份独立的同类登记表，通过其 /api/progress 接口读取。
package progress

import (
	"sync"
	"time"
)

// Entry 是某个文件键最近一次上报的进度。
type Entry struct {
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry 是文件键到最近进度的并发安全映射。
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry 创建一个空的进度登记表。
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Update 记录一次进度上报，覆盖该键的旧值。
func (r *Registry) Update(key string, progress int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = Entry{Progress: progress, Message: message, Timestamp: time.Now()}
}

// Get 返回该键最近一次上报的进度。
func (r *Registry) Get(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// Delete 移除该键的进度记录。
func (r *Registry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}
