package at

import (
	"strconv"
	"strings"
)

// SplitCSV splits a comma separated value list. The final field is kept
// whether or not the list ends with a comma, so "1,5,8" and "1,5,8," both
// yield three fields. An empty input yields no fields.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	if len(fields) > 1 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// Unquote trims surrounding whitespace and one pair of double quotes.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Atoi parses the leading integer of s the way C's atoi does: leading
// whitespace and an optional sign are accepted, parsing stops at the first
// non-digit, and text without digits yields 0.
func Atoi(s string) int {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// IntList decodes a CSV list of integers. Malformed entries decode as 0.
// A list wrapped in parentheses, as test commands ("AT+X=?") report ranges,
// is unwrapped first.
func IntList(s string) []int {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	fields := SplitCSV(s)
	list := make([]int, 0, len(fields))
	for _, f := range fields {
		list = append(list, Atoi(f))
	}
	return list
}

// JoinInts encodes values as a CSV list without a trailing separator.
func JoinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
