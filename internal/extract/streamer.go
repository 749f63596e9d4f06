package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// FieldStreamer decodes one top-level string field of a JSON object while
// the object is still arriving, so its text can be shown before the reply
// completes. Chunks may split keys, escapes and multi-byte runes anywhere.
type FieldStreamer struct {
	key     *regexp.Regexp
	buf     string
	cursor  int // next undecoded byte of the value; -1 until the key is seen
	done    bool
	emitted strings.Builder
}

// NewFieldStreamer streams the string value of field name.
func NewFieldStreamer(name string) *FieldStreamer {
	return &FieldStreamer{
		key:    regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*:\s*"`),
		cursor: -1,
	}
}

// Write appends a chunk of the reply and returns the newly decoded text.
func (s *FieldStreamer) Write(chunk string) string {
	if s.done {
		return ""
	}
	s.buf += chunk
	if s.cursor < 0 {
		loc := s.key.FindStringIndex(s.buf)
		if loc == nil {
			return ""
		}
		s.cursor = loc[1]
	}

	var out strings.Builder
decode:
	for s.cursor < len(s.buf) {
		c := s.buf[s.cursor]
		switch {
		case c == '"':
			s.done = true
			break decode
		case c == '\\':
			r, n, ok := s.escape(s.cursor)
			if !ok {
				break decode
			}
			out.WriteRune(r)
			s.cursor += n
		case c >= utf8.RuneSelf:
			if !utf8.FullRuneInString(s.buf[s.cursor:]) {
				break decode
			}
			r, n := utf8.DecodeRuneInString(s.buf[s.cursor:])
			out.WriteRune(r)
			s.cursor += n
		default:
			out.WriteByte(c)
			s.cursor++
		}
	}

	text := out.String()
	s.emitted.WriteString(text)
	return text
}

// escape decodes the escape sequence at i. ok is false when the sequence
// is not complete yet.
func (s *FieldStreamer) escape(i int) (r rune, n int, ok bool) {
	if i+1 >= len(s.buf) {
		return 0, 0, false
	}
	switch s.buf[i+1] {
	case 'n':
		return '\n', 2, true
	case 't':
		return '\t', 2, true
	case 'r':
		return '\r', 2, true
	case 'b':
		return '\b', 2, true
	case 'f':
		return '\f', 2, true
	case 'u':
		hi, ok := s.hex4(i + 2)
		if !ok {
			return 0, 0, false
		}
		if !utf16.IsSurrogate(hi) {
			return hi, 6, true
		}
		// A high surrogate needs its low half before it can be decoded.
		if i+8 > len(s.buf) {
			return 0, 0, false
		}
		if s.buf[i+6] == '\\' && s.buf[i+7] == 'u' {
			lo, ok := s.hex4(i + 8)
			if !ok {
				return 0, 0, false
			}
			if dec := utf16.DecodeRune(hi, lo); dec != utf8.RuneError {
				return dec, 12, true
			}
		}
		return utf8.RuneError, 6, true
	default:
		// \" \\ \/ and anything unknown decode to the character itself.
		return rune(s.buf[i+1]), 2, true
	}
}

func (s *FieldStreamer) hex4(i int) (rune, bool) {
	if i+4 > len(s.buf) {
		return 0, false
	}
	v, err := strconv.ParseUint(s.buf[i:i+4], 16, 32)
	if err != nil {
		return utf8.RuneError, true
	}
	return rune(v), true
}

// Emitted returns all text decoded so far.
func (s *FieldStreamer) Emitted() string {
	return s.emitted.String()
}

// Found reports whether the field's opening quote has been seen.
func (s *FieldStreamer) Found() bool {
	return s.cursor >= 0
}

// Done reports whether the field's closing quote has been seen.
func (s *FieldStreamer) Done() bool {
	return s.done
}

// Remainder returns the part of full not yet emitted, or "" when the
// emitted text is not a prefix of full.
func (s *FieldStreamer) Remainder(full string) string {
	rest, ok := strings.CutPrefix(full, s.Emitted())
	if !ok {
		return ""
	}
	return rest
}
