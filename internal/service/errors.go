package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound 资源不存在或已处于终态
// 为避免泄露记录是否存在,已消费的记录与从未存在的记录不做区分
var ErrNotFound = errors.New("resource not found")

// ValidationError 请求校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError 判断是否为校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError 制品存储错误
type StorageError struct {
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("artifact storage %s failed: %v", e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError 判断是否为存储错误
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// mapRepositoryError 将仓储层错误映射为服务层错误
func mapRepositoryError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
