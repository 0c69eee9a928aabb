// Package jsonscan extracts JSON objects from free-form model output.
package jsonscan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparseable is matched (errors.Is) by every UnparseableError.
var ErrUnparseable = errors.New("unparseable model output")

// UnparseableError reports model text that holds no decodable JSON object.
type UnparseableError struct {
	Raw   string
	Cause error
}

func (e *UnparseableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", ErrUnparseable, e.Cause)
	}
	return ErrUnparseable.Error()
}

func (e *UnparseableError) Is(target error) bool { return target == ErrUnparseable }

func (e *UnparseableError) Unwrap() error { return e.Cause }

// Decode parses the JSON object in text into v. It first tries the whole
// (trimmed) text; if that is not an object it decodes the first complete
// object literal found by FirstObject. Top-level null, arrays and scalars
// never satisfy Decode.
func Decode(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), v); err == nil {
			return nil
		}
	}

	obj, ok := FirstObject(trimmed)
	if !ok {
		return &UnparseableError{Raw: text}
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return &UnparseableError{Raw: text, Cause: err}
	}
	return nil
}

// FirstObject returns the first substring of text that is a syntactically
// complete JSON object. Each '{' is tried as a start in turn, so prose with
// stray braces before the payload is skipped.
func FirstObject(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		s := scanner{src: text, pos: i}
		if s.object() {
			return text[i:s.pos], true
		}
	}
	return "", false
}

// maxDepth bounds nesting so adversarial input cannot exhaust the stack.
const maxDepth = 512

// scanner is a recursive-descent recognizer for the JSON grammar. It only
// reports where a value ends; decoding is left to encoding/json.
type scanner struct {
	src   string
	pos   int
	depth int
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) value() bool {
	s.skipSpace()
	switch c := s.peek(); {
	case c == '{':
		return s.object()
	case c == '[':
		return s.array()
	case c == '"':
		return s.str()
	case c == '-' || (c >= '0' && c <= '9'):
		return s.number()
	case c == 't':
		return s.literal("true")
	case c == 'f':
		return s.literal("false")
	case c == 'n':
		return s.literal("null")
	}
	return false
}

func (s *scanner) object() bool {
	if s.peek() != '{' || s.depth >= maxDepth {
		return false
	}
	s.depth++
	defer func() { s.depth-- }()
	s.pos++

	s.skipSpace()
	if s.peek() == '}' {
		s.pos++
		return true
	}
	for {
		s.skipSpace()
		if !s.str() {
			return false
		}
		s.skipSpace()
		if s.peek() != ':' {
			return false
		}
		s.pos++
		if !s.value() {
			return false
		}
		s.skipSpace()
		switch s.peek() {
		case ',':
			s.pos++
		case '}':
			s.pos++
			return true
		default:
			return false
		}
	}
}

func (s *scanner) array() bool {
	if s.depth >= maxDepth {
		return false
	}
	s.depth++
	defer func() { s.depth-- }()
	s.pos++

	s.skipSpace()
	if s.peek() == ']' {
		s.pos++
		return true
	}
	for {
		if !s.value() {
			return false
		}
		s.skipSpace()
		switch s.peek() {
		case ',':
			s.pos++
		case ']':
			s.pos++
			return true
		default:
			return false
		}
	}
}

func (s *scanner) str() bool {
	if s.peek() != '"' {
		return false
	}
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '"':
			s.pos++
			return true
		case c == '\\':
			s.pos++
			if s.pos >= len(s.src) {
				return false
			}
			switch s.src[s.pos] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				s.pos++
			case 'u':
				if s.pos+5 > len(s.src) || !isHex4(s.src[s.pos+1:s.pos+5]) {
					return false
				}
				s.pos += 5
			default:
				return false
			}
		case c < 0x20:
			return false
		default:
			s.pos++
		}
	}
	return false
}

func (s *scanner) number() bool {
	start := s.pos
	if s.peek() == '-' {
		s.pos++
	}
	switch c := s.peek(); {
	case c == '0':
		s.pos++
	case c >= '1' && c <= '9':
		s.digits()
	default:
		return false
	}
	if s.peek() == '.' {
		s.pos++
		if !s.digits() {
			return false
		}
	}
	if c := s.peek(); c == 'e' || c == 'E' {
		s.pos++
		if c := s.peek(); c == '+' || c == '-' {
			s.pos++
		}
		if !s.digits() {
			return false
		}
	}
	return s.pos > start
}

func (s *scanner) digits() bool {
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
	}
	return s.pos > start
}

func (s *scanner) literal(word string) bool {
	if strings.HasPrefix(s.src[s.pos:], word) {
		s.pos += len(word)
		return true
	}
	return false
}

func isHex4(h string) bool {
	for i := 0; i < len(h); i++ {
		c := h[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return len(h) == 4
}
