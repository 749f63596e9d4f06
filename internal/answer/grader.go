package answer

import (
	"context"
	"strings"
)

// Validator decides semantic equivalence with a model call.
type Validator interface {
	Validate(ctx context.Context, question, expected, student string) (bool, error)
}

// Verdict is the outcome of grading one answer.
type Verdict struct {
	Correct bool
	Method  Method
}

// Grader applies the grading policy:
//
//   - an empty expected answer marks an open question; any non-empty
//     reply is accepted
//   - the deterministic rules of Match are authoritative when they accept
//   - otherwise, for a non-numeric expected answer and with a validator
//     configured, one semantic validation call decides
//   - numeric expected answers are never delegated
type Grader struct {
	validator Validator
}

// NewGrader returns a grader. A nil validator disables semantic checks.
func NewGrader(validator Validator) *Grader {
	return &Grader{validator: validator}
}

// Grade grades student against expected for the given question. The error
// is non-nil only when the semantic call fails.
func (g *Grader) Grade(ctx context.Context, question, expected, student string) (Verdict, error) {
	if strings.TrimSpace(expected) == "" {
		return Verdict{Correct: strings.TrimSpace(student) != "", Method: MethodOpen}, nil
	}
	if method, ok := Match(student, expected); ok {
		return Verdict{Correct: true, Method: method}, nil
	}
	if g.validator == nil || IsNumeric(expected) || strings.TrimSpace(student) == "" {
		return Verdict{}, nil
	}

	ok, err := g.validator.Validate(ctx, question, expected, student)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Correct: ok, Method: MethodSemantic}, nil
}
