package upload

import (
	"errors"
	"net/http"

	"terminal-terrace/response"
	"terminal-terrace/upload-service/internal/lock"
	"terminal-terrace/upload-service/internal/plupload"
)

// toBusinessError 把处理分块时的错误映射成业务错误码
func toBusinessError(err error) *response.BusinessError {
	var be *response.BusinessError
	if errors.As(err, &be) {
		return be
	}

	code, msg := response.Fail, "上传失败"
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		code, msg = response.UploadTooLarge, "分块超过大小限制"
	case errors.Is(err, plupload.ErrAlreadyProcessed):
		code, msg = response.UploadAlreadyProcessed, "该请求已处理"
	case errors.Is(err, plupload.ErrInvalidUpload):
		code, msg = response.UploadInvalid, "上传的文件无效"
	case errors.Is(err, plupload.ErrInputOpenFailed):
		code, msg = response.UploadInvalid, "无法读取上传的数据"
	case errors.Is(err, plupload.ErrInvalidFilename):
		code, msg = response.UploadInvalidFilename, "文件名无效"
	case errors.Is(err, plupload.ErrInvalidArgument):
		code, msg = response.UploadInvalidArgument, "chunk/chunks 参数无效"
	case errors.Is(err, plupload.ErrDirectoryCreateFailed):
		code, msg = response.UploadDirectoryError, "创建上传目录失败"
	case errors.Is(err, plupload.ErrDirectoryNotWritable):
		code, msg = response.UploadDirectoryError, "上传目录不可写"
	case errors.Is(err, plupload.ErrOutputOpenFailed):
		code, msg = response.UploadIOError, "打开目标文件失败"
	case errors.Is(err, plupload.ErrNotProcessed), errors.Is(err, plupload.ErrIncompleteFile):
		code, msg = response.UploadIncomplete, "文件尚未上传完成"
	case errors.Is(err, lock.ErrLockTimeout):
		code, msg = response.UploadBusy, "该文件正在被其他请求写入，请稍后重试"
	case errors.Is(err, errWriteFailed):
		code, msg = response.UploadIOError, "写入分块失败"
	}

	return response.NewBusinessError(
		response.WithErrorCode(code),
		response.WithErrorMessage(msg),
		response.WithError(err),
	)
}
