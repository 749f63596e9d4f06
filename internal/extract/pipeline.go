package extract

import (
	"context"
	"errors"
	"fmt"
)

// RepairFunc asks the model to fix a broken reply and returns its new
// reply text.
type RepairFunc func(ctx context.Context, broken string) (string, error)

// Result is the outcome of a pipeline run. When Fallback is set, Value is
// nil and Err describes why no structured content was produced.
type Result struct {
	Value    map[string]any
	Method   Method
	Repaired bool
	Fallback bool
	Raw      string
	Err      error
}

// Pipeline extracts an object, and on failure makes a single repair
// round-trip before giving up.
type Pipeline struct {
	Shape  Shape
	Repair RepairFunc
}

// Run never fails for content reasons: an unusable reply becomes a
// fallback result. The returned error is non-nil only when ctx ends.
func (p Pipeline) Run(ctx context.Context, raw string) (Result, error) {
	obj, method, err := p.attempt(raw)
	if err == nil {
		return Result{Value: obj, Method: method, Raw: raw}, nil
	}
	if p.Repair == nil {
		return Result{Method: MethodFallback, Fallback: true, Raw: raw, Err: err}, nil
	}

	fixed, repairErr := p.Repair(ctx, raw)
	if repairErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{
			Method:   MethodFallback,
			Fallback: true,
			Raw:      raw,
			Err:      errors.Join(err, fmt.Errorf("repair: %w", repairErr)),
		}, nil
	}

	obj, _, err = p.attempt(fixed)
	if err != nil {
		return Result{Method: MethodFallback, Fallback: true, Raw: raw, Err: err}, nil
	}
	return Result{Value: obj, Method: MethodRepaired, Repaired: true, Raw: fixed}, nil
}

func (p Pipeline) attempt(raw string) (map[string]any, Method, error) {
	obj, method, err := Extract(raw)
	if err != nil {
		return nil, method, err
	}
	if p.Shape != nil {
		if err := p.Shape(obj); err != nil {
			return nil, method, &ExtractionError{Slice: raw, Err: err}
		}
	}
	return obj, method, nil
}
