// Package io loads join key columns from files.
//
// Readers decode a file into Apache Arrow arrays and expose the requested
// columns as fragmented key columns, one fragment per Arrow chunk. The key
// columns reference Arrow buffers, so a KeyTable must stay alive until the
// hash tables built from it are no longer probed, and must be released with
// Release afterwards.
package io

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/joinhash/internal/column"
)

const (
	// DefaultBatchSize is the default number of rows per record batch
	DefaultBatchSize = 1 << 16
)

// Options contains configuration options for key file reading
type Options struct {
	// BatchSize is the number of CSV rows per record batch, i.e. per fragment
	BatchSize int
	// Compression is the codec used when writing Parquet files
	Compression string
}

// DefaultOptions returns default options
func DefaultOptions() Options {
	return Options{
		BatchSize:   DefaultBatchSize,
		Compression: "snappy",
	}
}

// KeyTable holds named key columns decoded from a file.
type KeyTable struct {
	Names   []string
	Columns []column.Column
	Infos   []column.TypeInfo

	release []func()
}

// NumRows returns the number of rows of the longest column.
func (t *KeyTable) NumRows() int {
	rows := 0
	for i := range t.Columns {
		rows = max(rows, t.Columns[i].NumElems)
	}
	return rows
}

// Tuple returns the columns as one key tuple.
func (t *KeyTable) Tuple() (column.Tuple, error) {
	return column.NewTuple(t.Columns, t.Infos)
}

// Release frees the Arrow memory backing the columns.
func (t *KeyTable) Release() {
	for _, fn := range t.release {
		fn()
	}
	t.release = nil
}

// add converts one chunked Arrow column and appends it under name.
func (t *KeyTable) add(name string, dt arrow.DataType, arrays []arrow.Array) error {
	col, info, err := column.FromArrow(dt, arrays)
	if err != nil {
		return fmt.Errorf("column %q: %w", name, err)
	}
	t.Names = append(t.Names, name)
	t.Columns = append(t.Columns, col)
	t.Infos = append(t.Infos, info)
	return nil
}

func fieldIndex(schema *arrow.Schema, name string) (int, error) {
	idx := schema.FieldIndices(name)
	if len(idx) == 0 {
		return 0, fmt.Errorf("column %q not found", name)
	}
	return idx[0], nil
}
