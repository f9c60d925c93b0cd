package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePredicate(t *testing.T) {
	p, err := CompilePredicate(`record.status == "paid" && record.amount > 10`)
	require.NoError(t, err)
	assert.Equal(t, `record.status == "paid" && record.amount > 10`, p.String())

	tests := []struct {
		name   string
		record map[string]any
		want   bool
	}{
		{"match", map[string]any{"status": "paid", "amount": 25}, true},
		{"wrong status", map[string]any{"status": "open", "amount": 25}, false},
		{"too small", map[string]any{"status": "paid", "amount": 5.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Match(tt.record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompilePredicate_SyntaxError(t *testing.T) {
	_, err := CompilePredicate(`record.status ==`)
	assert.Error(t, err)
}

func TestCompileTransform(t *testing.T) {
	fn, err := CompileTransform("value / 100")
	require.NoError(t, err)

	got, err := fn(250)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, got, 1e-9)

	// The compiled transform keeps no state between calls.
	got, err = fn(50)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestCompileTransform_NonNumericResult(t *testing.T) {
	fn, err := CompileTransform(`"x"`)
	require.NoError(t, err)

	_, err = fn(1)
	assert.ErrorContains(t, err, "want a number")
}
