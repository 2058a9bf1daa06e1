package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ReadParquetColumns reads the named columns of a Parquet file. Each row
// group chunk becomes one fragment.
func ReadParquetColumns(ctx context.Context, r io.Reader, names []string, mem memory.Allocator) (*KeyTable, error) {
	// Read all data into memory for Parquet reading
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer func() { _ = pqReader.Close() }()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}

	kt := &KeyTable{release: []func(){table.Release}}
	for _, name := range names {
		idx, err := fieldIndex(table.Schema(), name)
		if err != nil {
			kt.Release()
			return nil, err
		}
		chunked := table.Column(idx).Data()
		if err := kt.add(name, chunked.DataType(), chunked.Chunks()); err != nil {
			kt.Release()
			return nil, err
		}
	}
	return kt, nil
}

// WriteParquet writes table to w with the codec named in options.
func WriteParquet(w io.Writer, table arrow.Table, options Options) error {
	var compression compress.Compression
	switch options.Compression {
	case "gzip":
		compression = compress.Codecs.Gzip
	case "lz4":
		compression = compress.Codecs.Lz4Raw
	case "zstd":
		compression = compress.Codecs.Zstd
	case "uncompressed":
		compression = compress.Codecs.Uncompressed
	default:
		compression = compress.Codecs.Snappy
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(options.BatchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(memory.NewGoAllocator()))

	if err := pqarrow.WriteTable(table, w, int64(options.BatchSize), props, arrowProps); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	return nil
}
