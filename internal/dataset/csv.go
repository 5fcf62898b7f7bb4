package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dnswlt/dflineage/internal/store"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVIntrospector reads the schema of delimited text files from a store.
type CSVIntrospector struct {
	st   store.Store
	opts Options
}

var _ Introspector = (*CSVIntrospector)(nil)

func NewCSVIntrospector(st store.Store, opts Options) (*CSVIntrospector, error) {
	if opts.Delimiter == "" {
		opts.Delimiter = ","
	}
	if utf8.RuneCountInString(opts.Delimiter) != 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", opts.Delimiter)
	}
	return &CSVIntrospector{st: st, opts: opts}, nil
}

// Columns reads the file at path and returns its columns in file order.
// With type inference enabled, the whole file is scanned.
func (c *CSVIntrospector) Columns(ctx context.Context, path string) ([]Column, error) {
	f, err := c.st.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open dataset %s: %w", path, err)
	}
	defer f.Close()

	columns, err := c.readColumns(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return columns, nil
}

func (c *CSVIntrospector) readColumns(ctx context.Context, r io.Reader) ([]Column, error) {
	cr := csv.NewReader(r)
	cr.Comma, _ = utf8.DecodeRuneInString(c.opts.Delimiter)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var names []string
	var types []string
	for row := 0; ; row++ {
		if row%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row == 0 {
			names = make([]string, len(record))
			for i, h := range record {
				if c.opts.Header && i == 0 {
					h = strings.TrimPrefix(h, "\ufeff")
				}
				names[i] = strings.TrimSpace(h)
				if !c.opts.Header || names[i] == "" {
					names[i] = fmt.Sprintf("_c%d", i)
				}
			}
			types = make([]string, len(names))
			if !c.opts.InferSchema {
				break
			}
			if c.opts.Header {
				continue
			}
		}
		for i := 0; i < len(types) && i < len(record); i++ {
			types[i] = widen(types[i], inferType(record[i]))
		}
	}

	if len(names) == 0 {
		return nil, ErrEmptyDataset
	}
	columns := make([]Column, len(names))
	for i, name := range names {
		t := types[i]
		if t == "" {
			t = TypeString
		}
		columns[i] = Column{Name: name, Type: t}
	}
	return columns, nil
}

// inferType returns the most specific type for the value s,
// or "" if s is empty and therefore compatible with any type.
func inferType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := strconv.ParseInt(s, 10, 32); err == nil {
		return TypeInt
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TypeBigInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return TypeDouble
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return TypeBoolean
	}
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return TypeTimestamp
		}
	}
	return TypeString
}

var numericRank = map[string]int{
	TypeInt:    1,
	TypeBigInt: 2,
	TypeDouble: 3,
}

// widen returns the narrowest type that can hold values of both a and b.
// The empty type is the bottom element.
func widen(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "", a == b:
		return a
	}
	ra, aNum := numericRank[a]
	rb, bNum := numericRank[b]
	if aNum && bNum {
		if ra > rb {
			return a
		}
		return b
	}
	return TypeString
}
