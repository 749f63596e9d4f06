package answer

import (
	"strconv"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Twelve ", "12"},
		{"ZERO", "0"},
		{"$1,250", "1250"},
		{"1,000,000", "1000000"},
		{"50%", "50"},
		{"The answer is 7.", "the answer is 7"},
		{"three apples!", "3 apples"},
		{"3.50", "3.50"},
		{"yes, 7", "yes 7"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.input); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestNormalize_AllNumberWords(t *testing.T) {
	words := []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
		"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen",
		"eighteen", "nineteen", "twenty",
	}
	for i, w := range words {
		if got := Normalize(w); got != strconv.Itoa(i) {
			t.Errorf("Normalize(%q) = %q, want %d", w, got, i)
		}
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		student  string
		expected string
		want     bool
	}{
		{"twelve", "12", true},
		{"12", "twelve", true},
		{"12.0", "12", true},
		{"12", "12.0", true},
		{"The answer is 7", "7", true},
		{"I think it's seven apples", "7", true},
		{"17", "7", false},
		{"71", "1", false},
		{"$5", "5 dollars", false},
		{"5 dollars", "$5", true},
		{"blue whale", "Blue Whale", true},
		{"a big blue whale", "blue whale", true},
		{"whale", "blue whale", false},
		{"8", "9", false},
		{"", "9", false},
		{"9", "", false},
		{"inf", "inf", true},
		{"1,000", "1000", true},
	}

	for _, tc := range tests {
		if got := Check(tc.student, tc.expected); got != tc.want {
			t.Errorf("Check(%q, %q) = %v, want %v", tc.student, tc.expected, got, tc.want)
		}
	}
}

func TestMatch_Method(t *testing.T) {
	tests := []struct {
		student  string
		expected string
		want     Method
	}{
		{"nine", "9", MethodExact},
		{"9.00", "9", MethodNumeric},
		{"it is 9", "9", MethodSubstring},
		{"8", "9", MethodNone},
	}
	for _, tc := range tests {
		if got, _ := Match(tc.student, tc.expected); got != tc.want {
			t.Errorf("Match(%q, %q) method = %q, want %q", tc.student, tc.expected, got, tc.want)
		}
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"9", true},
		{"nine", true},
		{"$1,200", true},
		{"-3.5", true},
		{"blue whale", false},
		{"inf", false},
		{"9 apples", false},
	}
	for _, tc := range tests {
		if got := IsNumeric(tc.input); got != tc.want {
			t.Errorf("IsNumeric(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
