package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 使用场景：
//   - Pipeline 错误：INVALID_INPUT（非法请求，只在进入 Pipeline 前抛出）
//   - Store 错误：NOT_FOUND, UNAVAILABLE
//   - Service 错误：UNAVAILABLE（远程打分/召回不可用，Pipeline 内部降级）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_INPUT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "pipeline", "service"）
	Err     error  // 原始错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 按 Module + Code 匹配，便于 errors.Is(err, ErrInvalidQuery)。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建携带原始错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModulePipeline = "pipeline"
	ModuleStore    = "store"
	ModuleCache    = "cache"
	ModuleService  = "service"
)

var (
	// ErrInvalidQuery 表示 FeedQuery 非法（limit <= 0、cursor 无法解析等）。
	// 这是唯一会穿过 Pipeline 边界的错误。
	ErrInvalidQuery = NewDomainError(ModulePipeline, ErrorCodeInvalidInput, "pipeline: invalid feed query")

	// ErrNotFound 表示 key 不存在（缓存未命中等）
	ErrNotFound = NewDomainError(ModuleCache, ErrorCodeNotFound, "cache: key not found")
)

// IsInvalidQuery 检查错误是否为非法请求
func IsInvalidQuery(err error) bool {
	return errors.Is(err, ErrInvalidQuery)
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if de := GetDomainError(err); de != nil {
		return de.Code == ErrorCodeNotFound
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	if de := GetDomainError(err); de != nil {
		return de.Code == ErrorCodeUnavailable
	}
	return false
}

func invalidQuery(msg string) error {
	return &DomainError{
		Module:  ModulePipeline,
		Code:    ErrorCodeInvalidInput,
		Message: "pipeline: invalid feed query: " + msg,
	}
}
