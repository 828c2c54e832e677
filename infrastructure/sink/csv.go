// Package sink writes optimized models as CSV rows and merges per-job files.
package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/helixml/linefit/domain/service"
)

// ErrHeaderMismatch indicates records or files with differing columns.
var ErrHeaderMismatch = errors.New("csv header mismatch")

// CSVSink appends records to one CSV file. The header is written with the
// first record; later records must share it.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

var _ service.ResultSink = (*CSVSink)(nil)

// NewCSVSink creates a sink appending to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the output file.
func (s *CSVSink) Path() string { return s.path }

// Append writes one record.
func (s *CSVSink) Append(_ context.Context, record service.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, _, err := ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		header = nil
	case err != nil:
		return err
	}
	if header != nil && !slices.Equal(header, record.Columns()) {
		return fmt.Errorf("%w: %s", ErrHeaderMismatch, s.path)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	w := csv.NewWriter(f)
	if header == nil {
		_ = w.Write(record.Columns())
	}
	_ = w.Write(record.Values())
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sink: %w", err)
	}
	return f.Close()
}

// WriteFile writes records to path through a temporary file in the same
// directory, so a failed write leaves no partial output.
func WriteFile(path string, records ...service.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("write %s: no records", path)
	}
	header := records[0].Columns()
	rows := make([][]string, len(records))
	for i, r := range records {
		if !slices.Equal(header, r.Columns()) {
			return fmt.Errorf("%w: record %d", ErrHeaderMismatch, i)
		}
		rows[i] = r.Values()
	}
	return writeAtomic(path, header, rows)
}

// ReadFile returns the header and rows of a CSV file.
func ReadFile(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return header, rows, nil
}

func writeAtomic(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
