// Package script compiles the small tengo expressions used in chart options:
// record predicates for in-memory sources and aggregate value transforms.
package script

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/huangsam/chartkit/schema"
)

const resultVar = "__result"

// Predicate is a compiled boolean expression over a `record` map.
// It is not safe for concurrent use.
type Predicate struct {
	expr     string
	compiled *tengo.Compiled
}

// CompilePredicate compiles expr, e.g. `record.status == "paid" && record.amount > 10`.
func CompilePredicate(expr string) (*Predicate, error) {
	s := tengo.NewScript([]byte(wrap(expr)))
	if err := s.Add("record", map[string]any{}); err != nil {
		return nil, err
	}
	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile predicate %q: %w", expr, err)
	}
	return &Predicate{expr: expr, compiled: compiled}, nil
}

// Match evaluates the predicate against one record.
func (p *Predicate) Match(record map[string]any) (bool, error) {
	if err := p.compiled.Set("record", record); err != nil {
		return false, fmt.Errorf("failed to bind record for predicate %q: %w", p.expr, err)
	}
	if err := p.compiled.Run(); err != nil {
		return false, fmt.Errorf("failed to run predicate %q: %w", p.expr, err)
	}
	return p.compiled.Get(resultVar).Bool(), nil
}

// String returns the source expression.
func (p *Predicate) String() string {
	return p.expr
}

// CompileTransform compiles a numeric expression over `value`, e.g. `value / 100`.
func CompileTransform(expr string) (schema.TransformFunc, error) {
	s := tengo.NewScript([]byte(wrap(expr)))
	if err := s.Add("value", 0.0); err != nil {
		return nil, err
	}
	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile transform %q: %w", expr, err)
	}

	return func(value float64) (float64, error) {
		c := compiled.Clone()
		if err := c.Set("value", value); err != nil {
			return 0, err
		}
		if err := c.Run(); err != nil {
			return 0, fmt.Errorf("failed to run transform %q: %w", expr, err)
		}
		out := c.Get(resultVar)
		switch out.ValueType() {
		case "int", "float":
			return out.Float(), nil
		default:
			return 0, fmt.Errorf("transform %q returned %s, want a number", expr, out.ValueType())
		}
	}, nil
}

func wrap(expr string) string {
	return resultVar + " := (" + strings.TrimSpace(expr) + ")"
}
