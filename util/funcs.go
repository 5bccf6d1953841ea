package util

import (
	"fmt"
	"iter"
	"strings"
)

// JoinString renders each element with String and joins the results with sep
func JoinString[A fmt.Stringer](items []A, sep string) string {
	strs := make([]string, len(items))
	for i, item := range items {
		strs[i] = item.String()
	}
	return strings.Join(strs, sep)
}

// Reverse iterates over slice from its last element to its first
func Reverse[A any](slice []A) iter.Seq[A] {
	return func(yield func(A) bool) {
		for i := len(slice) - 1; i >= 0; i-- {
			if !yield(slice[i]) {
				return
			}
		}
	}
}
