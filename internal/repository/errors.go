// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// 仓储层统一的错误类别，上层据此翻译为 HTTP 状态码。
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrForeignKeyViolation = errors.New("foreign key violation")
)

// translate 将 gorm/驱动错误归一化为仓储层错误。
// TranslateError 覆盖 postgres，字符串兜底覆盖 sqlite 等测试驱动。
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrForeignKeyViolation
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint"):
		return ErrDuplicateKey
	case strings.Contains(msg, "foreign key"):
		return ErrForeignKeyViolation
	}
	return err
}
