package journal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	ID        string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sequence  int64  `parquet:"name=sequence, type=INT64"`
	Operation string `parquet:"name=operation, type=BYTE_ARRAY, convertedtype=UTF8"`
	Pool      string `parquet:"name=pool, type=BYTE_ARRAY, convertedtype=UTF8"`
	Actor     string `parquet:"name=actor, type=BYTE_ARRAY, convertedtype=UTF8"`
	Height    int64  `parquet:"name=height, type=INT64"`
	Detail    string `parquet:"name=detail, type=BYTE_ARRAY, convertedtype=UTF8"`
	Digest    string `parquet:"name=digest, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes every entry to path and returns the row count.
func (j *Journal) ExportParquet(ctx context.Context, path string) (int, error) {
	entries, err := j.List(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	if err := writeParquet(path, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func writeParquet(path string, entries []Entry) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("journal: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("journal: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, entry := range entries {
		row := &parquetRow{
			ID:        entry.ID.String(),
			Sequence:  int64(entry.Sequence),
			Operation: entry.Operation,
			Pool:      entry.Pool,
			Actor:     entry.Actor,
			Height:    int64(entry.Height),
			Detail:    entry.Detail,
			Digest:    entry.Digest,
			CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("journal: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("journal: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("journal: close parquet file: %w", err)
	}
	return nil
}
