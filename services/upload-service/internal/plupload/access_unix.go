//go:build unix

package plupload

import "golang.org/x/sys/unix"

// canWrite 按当前进程的有效身份检查目录是否可写
func canWrite(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}
