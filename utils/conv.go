package utils

import "strings"

// StrToPtr 去除首尾空白后返回指针，空串返回 nil（入库为 NULL）。
func StrToPtr(s string) *string {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return nil
	}
	return &s
}

func PtrToStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
