package io

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

var errNoRows = errors.New("reading CSV: no rows")

// ReadCSVColumns reads the named columns of a CSV file with a header row.
// Column types are inferred from the first row; each batch of
// options.BatchSize rows becomes one fragment. Empty fields are nulls.
func ReadCSVColumns(r io.Reader, names []string, options Options, mem memory.Allocator) (*KeyTable, error) {
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultBatchSize
	}
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if err != nil || !hasRows(br) {
		return nil, errNoRows
	}

	reader := csv.NewInferringReader(io.MultiReader(strings.NewReader(header), br),
		csv.WithHeader(true),
		csv.WithChunk(options.BatchSize),
		csv.WithAllocator(mem),
		csv.WithIncludeColumns(names),
		csv.WithNullReader(true, ""),
	)
	defer reader.Release()

	kt := &KeyTable{}
	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
		kt.release = append(kt.release, rec.Release)
	}
	if err := reader.Err(); err != nil {
		kt.Release()
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errNoRows
	}

	schema := records[0].Schema()
	for _, name := range names {
		idx, err := fieldIndex(schema, name)
		if err != nil {
			kt.Release()
			return nil, err
		}
		arrays := make([]arrow.Array, len(records))
		for i, rec := range records {
			arrays[i] = rec.Column(idx)
		}
		if err := kt.add(name, schema.Field(idx).Type, arrays); err != nil {
			kt.Release()
			return nil, err
		}
	}
	return kt, nil
}

// hasRows skips the blank lines after the header and reports whether any
// input remains. The inferring reader cannot handle a header-only file.
func hasRows(br *bufio.Reader) bool {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return false
		}
		if b[0] != '\n' && b[0] != '\r' {
			return true
		}
		_, _ = br.ReadByte()
	}
}
