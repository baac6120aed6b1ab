package io

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

const (
	trueStr  = "true"
	falseStr = "false"
)

type columnType int

const (
	stringColumn columnType = iota
	boolColumn
	intColumn
	floatColumn
)

// Read parses the whole CSV stream into one record. Column types are
// inferred from the non-missing cells: bool, then int64, then float64,
// falling back to string.
func (r *CSVReader) Read() (arrow.Record, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	var headers []string
	var dataRows [][]string
	switch {
	case len(records) == 0:
	case r.options.Header:
		headers = records[0]
		dataRows = records[1:]
	default:
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("C%d", i+1)
		}
		dataRows = records
	}

	fields := make([]arrow.Field, len(headers))
	cols := make([]arrow.Array, len(headers))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i, name := range headers {
		// Cells past the end of a short row are null regardless of NAStrings.
		cells := make([]string, len(dataRows))
		nulls := make([]bool, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				cells[j] = row[i]
				nulls[j] = r.isNA(row[i])
			} else {
				nulls[j] = true
			}
		}
		kind := inferDataType(cells, nulls)
		arr, err := r.buildColumn(kind, cells, nulls)
		if err != nil {
			return nil, fmt.Errorf("building column %s: %w", name, err)
		}
		cols[i] = arr
		fields[i] = arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), cols, int64(len(dataRows))), nil
}

func (r *CSVReader) isNA(value string) bool {
	for _, na := range r.options.NAStrings {
		if value == na {
			return true
		}
	}
	return false
}

// inferDataType determines the most specific type every non-missing cell fits
func inferDataType(data []string, nulls []bool) columnType {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasValue := false

	for i, value := range data {
		if nulls[i] {
			continue
		}
		hasValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}
		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	switch {
	case !hasValue:
		return stringColumn
	case canBeBool:
		return boolColumn
	case canBeInt:
		return intColumn
	case canBeFloat:
		return floatColumn
	default:
		return stringColumn
	}
}

func (r *CSVReader) buildColumn(kind columnType, data []string, nulls []bool) (arrow.Array, error) {
	switch kind {
	case boolColumn:
		b := array.NewBooleanBuilder(r.mem)
		defer b.Release()
		for i, v := range data {
			if nulls[i] {
				b.AppendNull()
				continue
			}
			b.Append(strings.EqualFold(v, trueStr))
		}
		return b.NewArray(), nil
	case intColumn:
		b := array.NewInt64Builder(r.mem)
		defer b.Release()
		for i, v := range data {
			if nulls[i] {
				b.AppendNull()
				continue
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, err
			}
			b.Append(n)
		}
		return b.NewArray(), nil
	case floatColumn:
		b := array.NewFloat64Builder(r.mem)
		defer b.Release()
		for i, v := range data {
			if nulls[i] {
				b.AppendNull()
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, err
			}
			b.Append(f)
		}
		return b.NewArray(), nil
	default:
		b := array.NewStringBuilder(r.mem)
		defer b.Release()
		for i, v := range data {
			if nulls[i] {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
		return b.NewArray(), nil
	}
}
