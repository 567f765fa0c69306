package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	pkgerrors "github.com/pkg/errors"
)

func compressDocument(doc []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(doc); err != nil {
		return nil, "", pkgerrors.Wrap(err, "compress document")
	}
	if err := gz.Close(); err != nil {
		return nil, "", pkgerrors.Wrap(err, "close gzip")
	}

	hash := sha256.Sum256(doc)
	return buf.Bytes(), hex.EncodeToString(hash[:]), nil
}

func decompressDocument(compressed []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create gzip reader")
	}
	defer gz.Close()

	doc, err := io.ReadAll(gz)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "decompress document")
	}
	return doc, nil
}

// DocumentStats contains storage statistics for calibration documents.
type DocumentStats struct {
	TotalCount           int
	TotalSizeBytes       int64
	CountByExperiment    map[string]int
	SizeByExperiment     map[string]int64
	CountBySchemaVersion map[int]int
}

func (s *Store) DocumentStats(ctx context.Context) (*DocumentStats, error) {
	stats := &DocumentStats{
		CountByExperiment:    make(map[string]int),
		SizeByExperiment:     make(map[string]int64),
		CountBySchemaVersion: make(map[int]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT experiment, schema_version, COUNT(*), COALESCE(SUM(LENGTH(document_compressed)), 0)
		FROM calibration_records
		GROUP BY experiment, schema_version
	`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query document stats")
	}
	defer rows.Close()

	for rows.Next() {
		var experiment string
		var version, count int
		var size int64
		if err := rows.Scan(&experiment, &version, &count, &size); err != nil {
			return nil, err
		}
		stats.TotalCount += count
		stats.TotalSizeBytes += size
		stats.CountByExperiment[experiment] += count
		stats.SizeByExperiment[experiment] += size
		stats.CountBySchemaVersion[version] += count
	}

	return stats, rows.Err()
}
