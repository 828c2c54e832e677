// Package spectrumfile reads and writes whitespace-delimited spectrum columns.
package spectrumfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/helixml/linefit/domain/spectrum"
)

// ErrMalformed indicates a spectrum file that cannot be parsed.
var ErrMalformed = errors.New("malformed spectrum file")

// Parse reads "wavelength flux error" rows. Extra columns, blank lines and
// lines starting with # are ignored.
func Parse(r io.Reader, path string) (*spectrum.Dataset, error) {
	var wave, flux, errs []float64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d: want 3 columns, got %d", ErrMalformed, lineNo, len(fields))
		}
		var row [3]float64
		for i := range row {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, lineNo, err)
			}
			row[i] = v
		}
		wave = append(wave, row[0])
		flux = append(flux, row[1])
		errs = append(errs, row[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read spectrum: %w", err)
	}

	return spectrum.NewDataset(path, wave, flux, errs)
}

// Read loads the dataset at path.
func Read(path string) (*spectrum.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spectrum: %w", err)
	}
	defer func() { _ = f.Close() }()

	d, err := Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Column is one named output column.
type Column struct {
	Name   string
	Values []float64
}

// Write writes equal-length columns as whitespace-delimited rows behind a
// "#" header line.
func Write(w io.Writer, columns ...Column) error {
	if len(columns) == 0 {
		return nil
	}
	n := len(columns[0].Values)
	names := make([]string, len(columns))
	for i, c := range columns {
		if len(c.Values) != n {
			return fmt.Errorf("column %s has %d values, want %d", c.Name, len(c.Values), n)
		}
		names[i] = c.Name
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "# %s\n", strings.Join(names, " ")); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for i := 0; i < n; i++ {
		for j, c := range columns {
			row[j] = strconv.FormatFloat(c.Values[i], 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(row, " ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
