package outwriter

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFormatter(t *testing.T) {
	tests := []struct {
		precision int
		value     float64
		expected  string
	}{
		{precision: 0, value: 15, expected: "15"},
		{precision: 1, value: 15, expected: "15.0"},
		{precision: 2, value: 2.345, expected: "2.35"},
		{precision: 2, value: -42.567, expected: "-42.57"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, createFormatter(tt.precision)(tt.value))
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string][]float64{"Paid": {15}}))
	assert.Equal(t, "{\n  \"Paid\": [\n    15\n  ]\n}\n", buf.String())

	err := writeJSON(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON")
}

func TestWriteCSVWithHeader(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, []string{"key", "value"}, func(w *csv.Writer) error {
		return w.Write([]string{"Paid, late", "3.0"})
	})
	require.NoError(t, err)
	assert.Equal(t, "key,value\n\"Paid, late\",3.0\n", buf.String())

	err = writeCSVWithHeader(&buf, []string{"key"}, func(*csv.Writer) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWriteWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.txt")
	err := writeWithFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "orders_per_day")
		return err
	}, "Wrote charts")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "orders_per_day", string(content))

	err = writeWithFile(path, func(io.Writer) error { return assert.AnError }, "Wrote charts")
	assert.ErrorIs(t, err, assert.AnError)

	err = writeWithFile("/nonexistent/dir/charts.txt", func(io.Writer) error { return nil }, "Wrote charts")
	require.Error(t, err)
}
