package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持 errors.Is / errors.As（通过 Unwrap 透出底层原因）
//
// 使用场景：
//   - 输入校验：INVALID_INPUT（喜欢列表为空、ID 非法）
//   - 模型训练：MODEL_FIT（评分集为空或退化，训练结果非有限值）
//   - 相似度查表：LOOKUP_MISS（某个喜欢的物品没有邻居列表，可恢复）
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "MODEL_FIT", "NOT_FOUND"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "model", "recall"）
	Err     error  // 底层原因（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建带底层原因的领域错误
func WrapDomainError(module, code string, err error, format string, args ...any) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	// 推荐链路错误代码
	ErrorCodeModelFit   = "MODEL_FIT"   // 隐因子模型无法训练
	ErrorCodeLookupMiss = "LOOKUP_MISS" // 相似度表中没有该物品
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 存储模块
	ModuleDataset   = "dataset"   // 评分集 / 相似度表
	ModuleModel     = "model"     // 隐因子模型
	ModuleRecall    = "recall"    // 召回模块
	ModuleRecommend = "recommend" // 推荐入口
)

// NewInvalidInputError 创建 INVALID_INPUT 错误。
func NewInvalidInputError(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeInvalidInput, message)
}

// NewModelFitError 创建 MODEL_FIT 错误。
func NewModelFitError(message string, cause error) *DomainError {
	return &DomainError{
		Module:  ModuleModel,
		Code:    ErrorCodeModelFit,
		Message: message,
		Err:     cause,
	}
}

// NewLookupMissError 创建 LOOKUP_MISS 错误。
func NewLookupMissError(itemID int64) *DomainError {
	return NewDomainError(ModuleRecall, ErrorCodeLookupMiss, fmt.Sprintf("no similarity entry for item %d", itemID))
}

// 通用错误检查函数

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsModelFit 检查错误是否为 MODEL_FIT
func IsModelFit(err error) bool { return hasCode(err, ErrorCodeModelFit) }

// IsLookupMiss 检查错误是否为 LOOKUP_MISS
func IsLookupMiss(err error) bool { return hasCode(err, ErrorCodeLookupMiss) }
