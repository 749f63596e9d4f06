// Package answer grades a learner's free-text reply against the expected
// answer of the question the story last asked.
package answer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Method names the rule that accepted an answer.
type Method string

const (
	MethodNone      Method = ""
	MethodExact     Method = "exact"
	MethodNumeric   Method = "numeric"
	MethodSubstring Method = "substring"
	MethodSemantic  Method = "semantic"
	MethodOpen      Method = "open"
)

var numberWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10", "eleven": "11", "twelve": "12", "thirteen": "13",
	"fourteen": "14", "fifteen": "15", "sixteen": "16", "seventeen": "17",
	"eighteen": "18", "nineteen": "19", "twenty": "20",
}

// thousandsSep matches a comma used as a digit group separator.
var thousandsSep = regexp.MustCompile(`(\d),(\d{3})`)

// Normalize lower-cases and trims text, maps the number words zero to
// twenty to digits, and strips currency, percent and thousands-separator
// characters. Tokens are re-joined with single spaces.
func Normalize(text string) string {
	return strings.Join(tokens(text), " ")
}

func tokens(text string) []string {
	s := strings.ToLower(strings.TrimSpace(text))
	for prev := ""; prev != s; {
		prev = s
		s = thousandsSep.ReplaceAllString(s, "$1$2")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '¥', '%':
			return -1
		}
		return r
	}, s)

	var out []string
	for _, f := range strings.Fields(s) {
		f = strings.TrimFunc(f, func(r rune) bool {
			return strings.ContainsRune(`,!?;:"'()[]{}`, r)
		})
		f = strings.TrimRight(f, ".")
		if f == "" {
			continue
		}
		if d, ok := numberWords[f]; ok {
			f = d
		}
		out = append(out, f)
	}
	return out
}

// Check reports whether the student's answer satisfies the expected one.
func Check(student, expected string) bool {
	_, ok := Match(student, expected)
	return ok
}

// Match is Check that also reports which rule accepted the answer.
//
// An answer is accepted when the normalized forms are identical, when
// both parse as the same number, or when the expected tokens appear as a
// contiguous run of whole tokens in the student's answer. Numeric tokens
// compare by value, so "the answer is 12.0" satisfies "12" while "17"
// does not satisfy "7".
func Match(student, expected string) (Method, bool) {
	st, et := tokens(student), tokens(expected)
	if len(st) == 0 || len(et) == 0 {
		return MethodNone, false
	}
	ns, ne := strings.Join(st, " "), strings.Join(et, " ")
	if ns == ne {
		return MethodExact, true
	}
	if a, ok := parseNumber(ns); ok {
		if b, ok := parseNumber(ne); ok && a == b {
			return MethodNumeric, true
		}
	}
	if containsRun(st, et) {
		return MethodSubstring, true
	}
	return MethodNone, false
}

// IsNumeric reports whether the expected answer normalizes to one number.
func IsNumeric(expected string) bool {
	_, ok := parseNumber(Normalize(expected))
	return ok
}

func containsRun(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, tok := range needle {
			if !tokenEqual(haystack[i+j], tok) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func tokenEqual(a, b string) bool {
	if a == b {
		return true
	}
	x, ok := parseNumber(a)
	if !ok {
		return false
	}
	y, ok := parseNumber(b)
	return ok && x == y
}

// parseNumber accepts plain decimal numbers only; words like "inf" and
// "nan" are not numbers here.
func parseNumber(s string) (float64, bool) {
	if s == "" || !strings.ContainsFunc(s, unicode.IsDigit) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
