// Package script normalizes legacy game scripts and mines their structure.
//
// The decompiled sources predate Lua 4's reserved words and carry decompiler
// artifacts, so they cannot be fed to a modern parser as-is. Normalize runs a
// single-pass byte state machine that fixes exactly the constructions the
// corpus contains and nothing else; its output is stable under a second pass.
package script

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

type normalizeState int

const (
	stateNormal normalizeState = iota
	stateLineComment
	stateBlockComment
	stateString
	stateLongString
)

// Normalize rewrites legacy source so a Lua 5 parser accepts it: the `%`
// decompiler artifact is stripped and the bare identifier `in` is renamed to
// `grim_in`. Comment and string regions pass through untouched, including
// balanced long-bracket delimiters.
func Normalize(source string) string {
	bytes := []byte(source)
	var result strings.Builder
	result.Grow(len(bytes))

	state := stateNormal
	var stringDelim byte
	var longDepth int

	i := 0
	for i < len(bytes) {
		switch state {
		case stateNormal:
			c := bytes[i]
			if c == '-' && i+1 < len(bytes) && bytes[i+1] == '-' {
				result.WriteString("--")
				i += 2
				if eqCount, consumed, ok := readLongStart(bytes[i:]); ok {
					result.Write(bytes[i : i+consumed])
					i += consumed
					longDepth = eqCount
					state = stateBlockComment
				} else {
					state = stateLineComment
				}
				continue
			}
			if c == '"' || c == '\'' {
				result.WriteByte(c)
				i++
				stringDelim = c
				state = stateString
				continue
			}
			if c == '[' {
				if eqCount, consumed, ok := readLongStart(bytes[i:]); ok {
					result.Write(bytes[i : i+consumed])
					i += consumed
					longDepth = eqCount
					state = stateLongString
					continue
				}
			}
			if c == '%' {
				i++
				continue
			}
			if isIdentStart(c) {
				start := i
				i++
				for i < len(bytes) && isIdentPart(bytes[i]) {
					i++
				}
				ident := string(bytes[start:i])
				if ident == "in" {
					result.WriteString("grim_in")
				} else {
					result.WriteString(ident)
				}
				continue
			}
			result.WriteByte(c)
			i++
		case stateString:
			c := bytes[i]
			result.WriteByte(c)
			i++
			if c == '\\' {
				if i < len(bytes) {
					result.WriteByte(bytes[i])
					i++
				}
			} else if c == stringDelim {
				state = stateNormal
			}
		case stateLineComment:
			c := bytes[i]
			result.WriteByte(c)
			i++
			if c == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if consumed, ok := matchesLongEnd(bytes[i:], longDepth); ok {
				result.Write(bytes[i : i+consumed])
				i += consumed
				state = stateNormal
			} else {
				result.WriteByte(bytes[i])
				i++
			}
		case stateLongString:
			if consumed, ok := matchesLongEnd(bytes[i:], longDepth); ok {
				result.Write(bytes[i : i+consumed])
				i += consumed
				state = stateNormal
			} else {
				result.WriteByte(bytes[i])
				i++
			}
		}
	}

	return result.String()
}

// DecodeLegacy converts raw script bytes to UTF-8. The shipped sources are
// Windows-1252; already-valid UTF-8 passes through unchanged.
func DecodeLegacy(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// readLongStart recognizes a long-bracket opener `[=*[` and reports its
// equals-sign depth and consumed length.
func readLongStart(bytes []byte) (eqCount, consumed int, ok bool) {
	if len(bytes) < 2 || bytes[0] != '[' {
		return 0, 0, false
	}
	idx := 1
	for idx < len(bytes) && bytes[idx] == '=' {
		eqCount++
		idx++
	}
	if idx < len(bytes) && bytes[idx] == '[' {
		return eqCount, idx + 1, true
	}
	return 0, 0, false
}

func matchesLongEnd(bytes []byte, eqCount int) (consumed int, ok bool) {
	if len(bytes) == 0 || bytes[0] != ']' {
		return 0, false
	}
	idx := 1
	for range eqCount {
		if idx >= len(bytes) || bytes[idx] != '=' {
			return 0, false
		}
		idx++
	}
	if idx < len(bytes) && bytes[idx] == ']' {
		return idx + 1, true
	}
	return 0, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
