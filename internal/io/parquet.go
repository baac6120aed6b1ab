package io

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Read reads Parquet data and returns its contents as one record.
func (r *ParquetReader) Read(ctx context.Context) (arrow.Record, error) {
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	props := pqarrow.ArrowReadProperties{BatchSize: int64(r.options.BatchSize)}
	arrowReader, err := pqarrow.NewFileReader(pqReader, props, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return tableToRecord(table, r.mem)
}

// tableToRecord concatenates the chunks of each column of table into a
// single record.
func tableToRecord(table arrow.Table, mem memory.Allocator) (arrow.Record, error) {
	cols := make([]arrow.Array, 0, table.NumCols())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for i := 0; i < int(table.NumCols()); i++ {
		chunks := table.Column(i).Data().Chunks()
		if len(chunks) == 0 {
			cols = append(cols, array.MakeArrayOfNull(mem, table.Schema().Field(i).Type, 0))
			continue
		}
		arr, err := array.Concatenate(chunks, mem)
		if err != nil {
			return nil, fmt.Errorf("concatenating column %s: %w", table.Schema().Field(i).Name, err)
		}
		cols = append(cols, arr)
	}
	return array.NewRecord(table.Schema(), cols, table.NumRows()), nil
}

// Write writes rec in Parquet format.
func (w *ParquetWriter) Write(rec arrow.Record) (err error) {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compressionCodec(w.options.Compression)),
		parquet.WithBatchSize(int64(w.options.BatchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(rec.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing file writer: %w", closeErr)
		}
	}()

	if err := writer.Write(rec); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func compressionCodec(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}
