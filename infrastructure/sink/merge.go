package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// jobFile matches per-job file names: "<prefix>_<k>.csv".
var jobFile = regexp.MustCompile(`^(.+)_(\d+)\.csv$`)

// JobFileName returns the per-job file name for a prefix and step index.
func JobFileName(prefix string, step int) string {
	return fmt.Sprintf("%s_%d.csv", prefix, step)
}

// MergedFileName returns the merged file name for a prefix.
func MergedFileName(prefix string) string {
	return prefix + ".csv"
}

// Merge concatenates the rows of every "<prefix>_<k>.csv" file in dir,
// drops duplicate rows, sorts them by chi-square and writes
// "<prefix>.csv". The result does not depend on file order. It returns the
// merged path and row count.
func Merge(dir, prefix string) (string, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", dir, err)
	}

	var header []string
	seen := make(map[string]struct{})
	var rows [][]string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := jobFile.FindStringSubmatch(e.Name())
		if m == nil || m[1] != prefix {
			continue
		}
		h, fileRows, err := ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", 0, err
		}
		if h == nil {
			continue
		}
		if header == nil {
			header = h
		} else if !slices.Equal(header, h) {
			return "", 0, fmt.Errorf("%w: %s", ErrHeaderMismatch, e.Name())
		}
		for _, row := range fileRows {
			key := strings.Join(row, "\x00")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			rows = append(rows, row)
		}
	}
	if header == nil {
		return "", 0, fmt.Errorf("merge %s: no job files in %s", prefix, dir)
	}

	sortRows(rows)
	out := filepath.Join(dir, MergedFileName(prefix))
	if err := writeAtomic(out, header, rows); err != nil {
		return "", 0, err
	}
	return out, len(rows), nil
}

// Prefixes returns the distinct job-file prefixes in dir, sorted.
func Prefixes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	set := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if m := jobFile.FindStringSubmatch(e.Name()); m != nil {
			set[m[1]] = struct{}{}
		}
	}
	prefixes := make([]string, 0, len(set))
	for p := range set {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes, nil
}

// MergeAll merges every prefix found in dir and returns prefix to path.
func MergeAll(dir string) (map[string]string, error) {
	prefixes, err := Prefixes(dir)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(prefixes))
	for _, p := range prefixes {
		path, _, err := Merge(dir, p)
		if err != nil {
			return merged, err
		}
		merged[p] = path
	}
	return merged, nil
}

// sortRows orders rows by their first column numerically, then by the
// remaining columns lexically.
func sortRows(rows [][]string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if len(a) > 0 && len(b) > 0 {
			fa, errA := strconv.ParseFloat(a[0], 64)
			fb, errB := strconv.ParseFloat(b[0], 64)
			if errA == nil && errB == nil && fa != fb {
				return fa < fb
			}
		}
		return slices.Compare(a, b) < 0
	})
}
