package dataframe

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	rapidsio "github.com/paveg/rapids/internal/io"
)

// ToArrow evaluates the frame, downloads its contents and returns them as a
// record allocated from mem (the default allocator when nil). The caller
// releases the record.
func (f *Frame) ToArrow(ctx context.Context, mem memory.Allocator) (arrow.Record, error) {
	if err := f.ensure(ctx, "ToArrow"); err != nil {
		return nil, err
	}
	rc, err := f.st.sess.download(ctx, f.st.key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rec, err := rapidsio.NewCSVReader(rc, rapidsio.DefaultCSVOptions(), mem).Read()
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", f.st.key, err)
	}
	return rec, nil
}

// WriteParquet downloads the frame and writes it to w as Parquet.
func (f *Frame) WriteParquet(ctx context.Context, w io.Writer, opts rapidsio.ParquetOptions) error {
	rec, err := f.ToArrow(ctx, nil)
	if err != nil {
		return err
	}
	defer rec.Release()
	return rapidsio.NewParquetWriter(w, opts).Write(rec)
}

// WriteJSON downloads the frame and writes it to w as JSON.
func (f *Frame) WriteJSON(ctx context.Context, w io.Writer, opts rapidsio.JSONOptions) error {
	rec, err := f.ToArrow(ctx, nil)
	if err != nil {
		return err
	}
	defer rec.Release()
	return rapidsio.NewJSONWriter(w, opts).Write(rec)
}
