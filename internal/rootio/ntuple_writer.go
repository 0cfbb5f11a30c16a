package rootio

import (
	"fmt"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
)

// WriteNtuple writes rows of float64 columns as a flat tree. Every row must
// hold one value per branch.
func WriteNtuple(path, tree string, branches []string, rows [][]float64) (err error) {
	f, err := groot.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	values := make([]float64, len(branches))
	wvars := make([]rtree.WriteVar, len(branches))
	for i, b := range branches {
		wvars[i] = rtree.WriteVar{Name: b, Value: &values[i]}
	}
	w, err := rtree.NewWriter(f, tree, wvars)
	if err != nil {
		return fmt.Errorf("failed to create tree %s in %s: %w", tree, path, err)
	}
	for i, row := range rows {
		if len(row) != len(branches) {
			_ = w.Close()
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(branches))
		}
		copy(values, row)
		if _, err := w.Write(); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	return w.Close()
}
