package dataset

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// Compression codecs supported for annotation tables.
const (
	CompressionSnappy       = "snappy"
	CompressionZstd         = "zstd"
	CompressionUncompressed = "uncompressed"
)

func compressionCodec(name string) (compress.Codec, error) {
	switch name {
	case CompressionSnappy, "":
		return &parquet.Snappy, nil
	case CompressionZstd:
		return &parquet.Zstd, nil
	case CompressionUncompressed:
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression codec %q", name)
	}
}

// WriteTable writes annotation rows as a Parquet file. Snappy is the
// default codec; zstd trades CPU for smaller archives of large mask
// tables.
func WriteTable(w io.Writer, rows []Row, compression string) error {
	codec, err := compressionCodec(compression)
	if err != nil {
		return err
	}

	writer := parquet.NewGenericWriter[Row](w, parquet.Compression(codec))
	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return fmt.Errorf("write annotation rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close annotation table: %w", err)
	}
	return nil
}

// ReadTable reads annotation rows from a Parquet file. Rows are
// reconstructed one by one against the Row schema rather than through
// the generic decoder, which drops the optional list columns. Files
// written before the sample-metadata columns existed simply leave
// those fields null.
func ReadTable(r io.ReaderAt, size int64) ([]Row, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open annotation table: %w", err)
	}

	schema := parquet.SchemaOf(new(Row))
	out := make([]Row, 0, file.NumRows())
	buf := make([]parquet.Row, 64)

	for _, group := range file.RowGroups() {
		rows := group.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, record := range buf[:n] {
				var row Row
				if err := schema.Reconstruct(&row, record); err != nil {
					rows.Close()
					return nil, fmt.Errorf("read annotation table: %w", err)
				}
				out = append(out, row)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read annotation table: %w", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("read annotation table: %w", err)
		}
	}
	return out, nil
}
