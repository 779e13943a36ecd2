package plupload

import "errors"

// 所有错误都会中止当前处理步骤，内部不做重试；调用方用 errors.Is 判断种类
var (
	ErrAlreadyProcessed      = errors.New("upload has already been processed")
	ErrInvalidUpload         = errors.New("uploaded file is invalid")
	ErrDirectoryCreateFailed = errors.New("unable to create the target directory")
	ErrDirectoryNotWritable  = errors.New("unable to write in the target directory")
	ErrOutputOpenFailed      = errors.New("could not open/create output file")
	ErrInputOpenFailed       = errors.New("could not open input stream")
	ErrInvalidFilename       = errors.New("filename can't be empty")
	ErrNotProcessed          = errors.New("upload hasn't been processed")
	ErrIncompleteFile        = errors.New("file is not complete")
	ErrInvalidArgument       = errors.New("invalid chunk argument")
)
