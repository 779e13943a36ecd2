package response

import "errors"

// 业务错误码
const (
	// 失败
	Fail ResponseCode = 0
	// 参数解析错误
	ParseError ResponseCode = 1
	// 参数错误
	InvalidParameter ResponseCode = 2
	// 未认证
	Unauthorized ResponseCode = 3
	// 无权限
	Forbidden ResponseCode = 4
	// 资源不存在
	NotFound ResponseCode = 5
)

// 上传相关错误码
const (
	// 同一请求重复处理
	UploadAlreadyProcessed ResponseCode = 1001
	// 上传的文件无效
	UploadInvalid ResponseCode = 1002
	// 目标目录不可用（创建失败或不可写）
	UploadDirectoryError ResponseCode = 1003
	// 读写文件失败
	UploadIOError ResponseCode = 1004
	// 文件名为空或非法
	UploadInvalidFilename ResponseCode = 1005
	// 文件尚未上传完成
	UploadIncomplete ResponseCode = 1006
	// chunk/chunks 参数非法
	UploadInvalidArgument ResponseCode = 1007
	// 同一文件的分块正在被其他请求写入
	UploadBusy ResponseCode = 1008
	// 分块超过大小限制
	UploadTooLarge ResponseCode = 1009
)

type BusinessError struct {
	Code ResponseCode
	Msg  string
	Err  error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

type ErrorOption func(*BusinessError)

func WithErrorCode(code ResponseCode) ErrorOption {
	return func(be *BusinessError) {
		be.Code = code
	}
}

func WithErrorMessage(msg string) ErrorOption {
	return func(be *BusinessError) {
		be.Msg = msg
	}
}

func WithError(err error) ErrorOption {
	return func(be *BusinessError) {
		be.Err = err
	}
}

func NewBusinessError(opts ...ErrorOption) *BusinessError {
	err := &BusinessError{
		Code: Fail,
		Msg:  "business error",
		Err:  nil,
	}
	for _, opt := range opts {
		opt(err)
	}
	return err
}

// AsBusinessError 从错误链中取出 BusinessError，取不到时包装成通用失败
func AsBusinessError(err error) *BusinessError {
	if err == nil {
		return nil
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be
	}
	return NewBusinessError(
		WithErrorCode(Fail),
		WithErrorMessage(err.Error()),
		WithError(err),
	)
}
