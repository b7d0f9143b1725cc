package terminal

import (
	"strings"
	"unicode/utf8"
)

const (
	esc = '\x1b'
	bel = '\x07'
)

// Sanitize decodes raw pty output (invalid UTF-8 becomes U+FFFD) and strips
// CSI, OSC and charset-designation sequences plus every carriage return.
// Sequences cut off by the end of input are dropped silently.
func Sanitize(raw []byte) string {
	return StripEscapes(strings.ToValidUTF8(string(raw), "\uFFFD"))
}

// StripEscapes is the single forward pass behind Sanitize.
func StripEscapes(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		switch c {
		case '\r':
			i++
		case esc:
			i = skipEscape(s, i+1)
		default:
			_, size := utf8.DecodeRuneInString(s[i:])
			out.WriteString(s[i : i+size])
			i += size
		}
	}

	return out.String()
}

// skipEscape returns the index just past the sequence whose introducer
// follows the ESC at i-1. An ESC followed by anything else is dropped alone.
func skipEscape(s string, i int) int {
	if i >= len(s) {
		return i
	}

	switch s[i] {
	case '[':
		// CSI: parameters and intermediates up to a final letter.
		for i++; i < len(s); {
			c := s[i]
			i++
			if isASCIILetter(c) {
				break
			}
		}
		return i
	case ']':
		// OSC: terminated by BEL or ST (ESC \).
		for i++; i < len(s); {
			c := s[i]
			i++
			if c == bel {
				break
			}
			if c == esc {
				if i < len(s) && s[i] == '\\' {
					i++
				}
				break
			}
		}
		return i
	case '(', ')':
		i++
		if i < len(s) {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
		}
		return i
	default:
		return i
	}
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// TailLines keeps the last n newline-delimited lines of s. A trailing newline
// does not count as an empty final line, and the result is re-joined with
// "\n" without a trailing terminator. n < 0 returns s unchanged.
func TailLines(s string, n int) string {
	if n < 0 {
		return s
	}

	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
