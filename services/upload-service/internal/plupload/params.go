package plupload

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseChunkParam 宽松解析 chunk/chunks 参数
// 取开头的可选符号和数字，其余部分忽略；非数字、溢出或负数都按 0 处理
func ParseChunkParam(s string) int {
	s = strings.TrimSpace(s)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseChunkParamStrict 严格解析：空值视为 0，其余必须是非负整数
func ParseChunkParamStrict(name, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidArgument, name, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s=%d must not be negative", ErrInvalidArgument, name, n)
	}
	return n, nil
}
