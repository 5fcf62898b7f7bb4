// Package dataset enumerates the columns of tabular datasets.
//
// Only column names and their declared data types are of interest.
// The data itself is never transformed.
package dataset

import (
	"context"
	"errors"
)

// Simple type names reported for columns. They follow the names that Spark
// uses in DataFrame.dtypes.
const (
	TypeInt       = "int"
	TypeBigInt    = "bigint"
	TypeDouble    = "double"
	TypeBoolean   = "boolean"
	TypeTimestamp = "timestamp"
	TypeString    = "string"
)

var (
	// ErrEmptyDataset is returned for datasets that do not define any columns.
	ErrEmptyDataset = errors.New("dataset has no columns")
)

// Column is a column of a dataset.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Introspector reads the schema of the dataset at path.
type Introspector interface {
	Columns(ctx context.Context, path string) ([]Column, error)
}

// Options control how delimited files are read.
type Options struct {
	// Header indicates that the first row holds the column names.
	// Without a header, columns are named _c0, _c1, ...
	Header bool
	// InferSchema enables type inference. Without it, all columns have type string.
	InferSchema bool
	// Delimiter separates the fields of a row. Must be a single character.
	Delimiter string
}

// DefaultOptions returns the options used for the demo dataset:
// a comma-separated file with a header row and inferred types.
func DefaultOptions() Options {
	return Options{
		Header:      true,
		InferSchema: true,
		Delimiter:   ",",
	}
}
