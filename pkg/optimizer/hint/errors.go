package hint

import (
	"fmt"

	"go.uber.org/zap"
)

// Error hint 校验失败
type Error struct {
	Hint    string
	Message string
}

// Error 实现 error 接口，返回与告警一致的文本
func (e *Error) Error() string {
	return e.Message
}

// NewError 创建 hint 错误
func NewError(hintName, format string, args ...any) *Error {
	return &Error{Hint: hintName, Message: fmt.Sprintf(format, args...)}
}

func unknownHint(name string) *Error {
	return NewError(name, "Hint: %s should be registered in the HintStrategyTable", name)
}

// ErrorHandler 处理校验失败：返回 nil 表示继续
type ErrorHandler interface {
	Handle(err *Error) error
}

// ErrorHandlerFunc 函数适配器
type ErrorHandlerFunc func(err *Error) error

func (f ErrorHandlerFunc) Handle(err *Error) error { return f(err) }

type warnHandler struct {
	logger *zap.Logger
}

// Warn 记录告警后继续
func Warn(logger *zap.Logger) ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &warnHandler{logger: logger}
}

func (w *warnHandler) Handle(err *Error) error {
	w.logger.Warn(err.Message, zap.String("hint", err.Hint))
	return nil
}

type strictHandler struct{}

// Strict 返回错误，中止当前操作
func Strict() ErrorHandler {
	return strictHandler{}
}

func (strictHandler) Handle(err *Error) error {
	return err
}
