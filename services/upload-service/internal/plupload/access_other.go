//go:build !unix

package plupload

import "os"

// 非 unix 平台只依据权限位判断
func canWrite(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.Mode().Perm()&0o222 != 0
}
