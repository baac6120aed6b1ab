package io

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Write writes rec as JSON. Missing cells and non-finite floats become null.
func (w *JSONWriter) Write(rec arrow.Record) error {
	rows := recordToRows(rec)
	switch w.options.Format {
	case JSONArray:
		if len(rows) == 0 {
			_, err := w.writer.Write([]byte("[]"))
			return err
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("marshaling JSON array: %w", err)
		}
		_, err = w.writer.Write(data)
		return err
	case JSONLines:
		enc := json.NewEncoder(w.writer)
		for i, row := range rows {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("marshaling JSON record %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported JSON format: %d", w.options.Format)
	}
}

func recordToRows(rec arrow.Record) []map[string]any {
	rows := make([]map[string]any, rec.NumRows())
	for i := range rows {
		rows[i] = make(map[string]any, rec.NumCols())
	}
	for c, col := range rec.Columns() {
		name := rec.ColumnName(c)
		for i := range rows {
			rows[i][name] = cellValue(col, i)
		}
	}
	return rows
}

func cellValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Float64:
		return finite(a.Value(i))
	case *array.Float32:
		return finite(float64(a.Value(i)))
	case *array.String:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	default:
		return arr.ValueStr(i)
	}
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
