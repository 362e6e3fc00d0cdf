// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package seedstore

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetWriteConcurrency matches the donor's worker-pool default of
// runtime.NumCPU()-bounded fan-out, capped low since seed tables are small
// per package.
const parquetWriteConcurrency = 4

// writeParquet writes rows (a slice of a row struct carrying `parquet:"..."`
// tags) to path, whose parent directory must already exist (writeTable
// creates it). It always produces a
// valid, readable (possibly zero-row) parquet file, even for an empty slice,
// so that downstream readers never have to special-case "table has zero
// rows" vs. "table file is missing".
func writeParquet[T any](path string, rows []T) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open parquet file writer: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(T), parquetWriteConcurrency)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.Close()
}

// readParquet reads all rows from a parquet file written by writeParquet.
func readParquet[T any](path string) ([]T, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file reader: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(T), parquetWriteConcurrency)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]T, n)
	if n > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}
	return rows, nil
}
