package schema

import (
	"errors"
	"fmt"
)

// ErrDataSourceNotFound is wrapped by DataSourceError when a source name is not configured.
var ErrDataSourceNotFound = errors.New("data source not found")

// ConfigurationError reports the first chart option that violated a validation rule.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid chart option %q: %s", e.Field, e.Message)
}

// DateParseError reports a record value that could not be read as a date while bucketing.
type DateParseError struct {
	Field  string
	Value  any
	Layout string
	Err    error
}

func (e *DateParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot parse %q value %v as a date with layout %q", e.Field, e.Value, e.Layout)
	}
	return fmt.Sprintf("cannot parse %q value %v as a date with layout %q: %v", e.Field, e.Value, e.Layout, e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// AggregationError reports a value that cannot take part in a sum or average.
type AggregationError struct {
	Field    string
	Bucket   string
	Value    any
	Function AggregateFunction
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("cannot %s non-numeric %q value %v in bucket %q", e.Function, e.Field, e.Value, e.Bucket)
}

// DataSourceError reports a data source that could not be resolved or queried.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %q: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}
