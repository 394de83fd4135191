package utils

import "strings"

func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
