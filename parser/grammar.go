// Package parser implements the Parameter Grammar (§4.B) and the two-pass
// Record Parser (§4.C): tolerant single-pass lexing of each logical line
// into a preliminary record, followed by a finalize pass that expands
// aliases, applies positional default directives, validates ranges, and
// canonicalizes numbers.
package parser

import "strings"

// FindInlineCommentIndex locates the byte offset of a "//" that introduces
// a trailing comment, applying the URL heuristic of §4.B/§9: "//" only
// starts a comment when it is at the start of the line, preceded by
// whitespace, or preceded by a non-alphanumeric character that is not ':'
// (so neither "https://" nor "a//b" is mistaken for a comment, while
// "x //c" and "x,//c" both are).
func FindInlineCommentIndex(line string) (int, bool) {
	searchStart := 0
	for {
		idx := strings.Index(line[searchStart:], "//")
		if idx < 0 {
			return 0, false
		}
		abs := searchStart + idx
		if abs == 0 {
			return abs, true
		}
		prev := line[abs-1]
		alnum := (prev >= '0' && prev <= '9') || (prev >= 'A' && prev <= 'Z') || (prev >= 'a' && prev <= 'z')
		if prev != ':' && !alnum {
			return abs, true
		}
		searchStart = abs + 2
	}
}

// SplitInlineComment splits a line into its content and optional trailing
// comment text (without the leading "//", trimmed).
func SplitInlineComment(line string) (content string, comment string, hasComment bool) {
	idx, ok := FindInlineCommentIndex(line)
	if !ok {
		return line, "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+2:]), true
}

// IsNumber reports whether s parses as a signed decimal number (the
// "number" token of §4.B).
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	if i == len(s) {
		return false
	}
	seenDigit := false
	seenDot := false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '.' && !seenDot:
			seenDot = true
		default:
			return false
		}
	}
	return seenDigit
}

var identStart = func(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
var identCont = func(c byte) bool {
	return identStart(c) || (c >= '0' && c <= '9')
}

// IsIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func IsIdentifier(s string) bool {
	if s == "" || !identStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !identCont(s[i]) {
			return false
		}
	}
	return true
}

// SplitKV splits an "ident=value" token into its key and raw value. ok is
// false if part does not contain exactly the kv shape (identifier key, "=",
// non-empty value).
func SplitKV(part string) (key, value string, ok bool) {
	i := strings.IndexByte(part, '=')
	if i <= 0 || i == len(part)-1 {
		return "", "", false
	}
	key = part[:i]
	if !IsIdentifier(key) {
		return "", "", false
	}
	return key, part[i+1:], true
}
