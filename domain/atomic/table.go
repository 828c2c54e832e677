// Package atomic provides the read-only atomic transition reference table.
package atomic

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownIon indicates the ion name is not present in the table.
var ErrUnknownIon = errors.New("unknown ion")

// Transition is a single atomic line of an ion.
type Transition struct {
	ion        string
	wavelength float64
	oscillator float64
	damping    float64
}

// NewTransition creates a Transition.
func NewTransition(ion string, wavelength, oscillator, damping float64) Transition {
	return Transition{
		ion:        ion,
		wavelength: wavelength,
		oscillator: oscillator,
		damping:    damping,
	}
}

// Ion returns the ion name.
func (t Transition) Ion() string { return t.ion }

// Wavelength returns the rest wavelength in Angstrom.
func (t Transition) Wavelength() float64 { return t.wavelength }

// Oscillator returns the oscillator strength.
func (t Transition) Oscillator() float64 { return t.oscillator }

// Damping returns the damping constant in s^-1.
func (t Transition) Damping() float64 { return t.damping }

// Table maps ion names to their transitions, sorted by descending wavelength.
// A Table is immutable once built and safe for concurrent use.
type Table struct {
	ions map[string][]Transition
}

// NewTable builds a Table from a flat list of transitions.
func NewTable(transitions []Transition) *Table {
	ions := make(map[string][]Transition)
	for _, t := range transitions {
		ions[t.ion] = append(ions[t.ion], t)
	}
	for _, list := range ions {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].wavelength > list[j].wavelength
		})
	}
	return &Table{ions: ions}
}

// Transitions returns a copy of the transitions for an ion.
func (t *Table) Transitions(ion string) ([]Transition, error) {
	list, ok := t.ions[ion]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIon, ion)
	}
	result := make([]Transition, len(list))
	copy(result, list)
	return result, nil
}

// Has reports whether the ion is present.
func (t *Table) Has(ion string) bool {
	_, ok := t.ions[ion]
	return ok
}

// Ions returns all ion names in sorted order.
func (t *Table) Ions() []string {
	names := make([]string, 0, len(t.ions))
	for name := range t.ions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the total number of transitions.
func (t *Table) Len() int {
	n := 0
	for _, list := range t.ions {
		n += len(list)
	}
	return n
}

// Parse reads whitespace-delimited transition records.
// The last three fields are wavelength, oscillator strength and damping
// constant; all preceding fields form the ion name ("H I 1215.67 ..." is "H I").
func Parse(r io.Reader) (*Table, error) {
	var transitions []Transition

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: expected ion, wavelength, oscillator strength and damping, got %d fields", lineNo, len(fields))
		}

		n := len(fields)
		values := make([]float64, 3)
		for i, field := range fields[n-3:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse %q: %w", lineNo, field, err)
			}
			values[i] = v
		}

		ion := strings.Join(fields[:n-3], " ")
		transitions = append(transitions, NewTransition(ion, values[0], values[1], values[2]))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read atomic table: %w", err)
	}

	return NewTable(transitions), nil
}

// Load reads a Table from a file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open atomic table: %w", err)
	}
	defer func() { _ = f.Close() }()

	table, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse atomic table %s: %w", path, err)
	}
	return table, nil
}
