package plupload

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var disallowedNameChars = regexp.MustCompile(`[^\w\._]+`)

// SanitizeFilename 只保留字母、数字、下划线和点
func SanitizeFilename(name string) string {
	return disallowedNameChars.ReplaceAllString(name, "")
}

// GenerateFilename 为单次上传生成全局唯一文件名，形如 pl0f8c...（32 位十六进制）
func GenerateFilename() string {
	return "pl" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
