// Package rootio reads histograms and ntuples from ROOT files and writes the
// shapes files referenced by the datacards.
package rootio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/topljets/cardgen/internal/hist"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/root"
	"go.uber.org/zap"
)

// ObservedName is the process name Combine expects for the observation.
const ObservedName = "data_obs"

// ErrDirNotFound is returned when a requested directory does not exist in a file.
var ErrDirNotFound = errors.New("directory not found")

// stripTokens are removed from histogram names to build process names.
var stripTokens = []string{"+", "-", "*", " ", "#", "{", "(", ")", "}", "@"}

// DistReader reads the observed and expected distributions stored in a directory.
type DistReader interface {
	// Dists returns the observation (nil when absent) and the expectations keyed
	// by process name. A non-empty filter keeps only expectations whose
	// histogram name contains it.
	Dists(ctx context.Context, file, dir, filter string) (*hist.Hist, map[string]*hist.Hist, error)
	// Rows reads the 2-D histograms stored in dir and returns their Y row
	// labelled row, projected onto the X axis. The observation is the
	// histogram named after dir. Histograms without the row are skipped;
	// ErrRowNotFound is returned when none has it.
	Rows(ctx context.Context, file, dir, row, filter string) (*hist.Hist, map[string]*hist.Hist, error)
}

// ProcessName turns a histogram name stored under base into a process name.
func ProcessName(base, histName string) string {
	name := strings.TrimPrefix(histName, base+"_")
	for _, tok := range stripTokens {
		name = strings.ReplaceAll(name, tok, "")
	}
	return name
}

// FileReader is a DistReader over local ROOT files. Files are opened on first
// use and kept open until Close.
type FileReader struct {
	mu     sync.Mutex
	files  map[string]*riofs.File
	logger *zap.Logger
}

var _ DistReader = &FileReader{} // Compile-time check

// NewFileReader creates a reader logging to logger (may be nil).
func NewFileReader(logger *zap.Logger) *FileReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileReader{files: make(map[string]*riofs.File), logger: logger}
}

func (r *FileReader) open(path string) (*riofs.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[path]; ok {
		return f, nil
	}
	f, err := groot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ROOT file %s: %w", path, err)
	}
	r.files[path] = f
	r.logger.Debug("opened ROOT file", zap.String("path", path))
	return f, nil
}

// walk calls fn with the latest cycle of every object stored in dir.
func (r *FileReader) walk(ctx context.Context, file, dir string, fn func(name string, obj root.Object)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := r.open(file)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	obj, err := riofs.Dir(f).Get(dir)
	if err != nil {
		return fmt.Errorf("%s:%s: %w", file, dir, ErrDirNotFound)
	}
	d, ok := obj.(riofs.Directory)
	if !ok {
		return fmt.Errorf("%s:%s is a %T, not a directory", file, dir, obj)
	}

	seen := make(map[string]bool)
	for _, key := range d.Keys() {
		name := key.Name()
		if seen[name] {
			continue // older cycle
		}
		seen[name] = true

		o, err := key.Object()
		if err != nil {
			return fmt.Errorf("failed to read %s from %s:%s: %w", name, file, dir, err)
		}
		fn(name, o)
	}
	return nil
}

// Dists implements the DistReader interface.
func (r *FileReader) Dists(ctx context.Context, file, dir, filter string) (*hist.Hist, map[string]*hist.Hist, error) {
	base, _, _ := strings.Cut(dir, "/")
	var obs *hist.Hist
	exp := make(map[string]*hist.Hist)
	err := r.walk(ctx, file, dir, func(name string, o root.Object) {
		h1, ok := o.(h1Reader)
		if !ok {
			return
		}
		if name == base {
			obs = FromROOT(ObservedName, h1)
			return
		}
		if filter != "" && !strings.Contains(name, filter) {
			return
		}
		proc := ProcessName(base, name)
		exp[proc] = FromROOT(proc, h1)
	})
	if err != nil {
		return nil, nil, err
	}
	r.logger.Debug("read distributions",
		zap.String("file", file), zap.String("dir", dir), zap.String("filter", filter),
		zap.Int("processes", len(exp)), zap.Bool("observed", obs != nil))
	return obs, exp, nil
}

// Rows implements the DistReader interface.
func (r *FileReader) Rows(ctx context.Context, file, dir, row, filter string) (*hist.Hist, map[string]*hist.Hist, error) {
	base, _, _ := strings.Cut(dir, "/")
	var obs *hist.Hist
	exp := make(map[string]*hist.Hist)
	var missing []string
	err := r.walk(ctx, file, dir, func(name string, o root.Object) {
		h2, ok := o.(h2Reader)
		if !ok {
			return
		}
		if name != base && filter != "" && !strings.Contains(name, filter) {
			return
		}
		proc := ObservedName
		if name != base {
			proc = ProcessName(base, name)
		}
		h, err := RowFromROOT(proc, h2, row)
		if err != nil {
			missing = append(missing, name)
			return
		}
		if name == base {
			obs = h
			return
		}
		exp[proc] = h
	})
	if err != nil {
		return nil, nil, err
	}
	if obs == nil && len(exp) == 0 {
		return nil, nil, fmt.Errorf("%s:%s[%s]: %w", file, dir, row, ErrRowNotFound)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		r.logger.Debug("histograms without row", zap.String("dir", dir), zap.String("row", row), zap.Strings("names", missing))
	}
	r.logger.Debug("read distribution rows",
		zap.String("file", file), zap.String("dir", dir), zap.String("row", row), zap.String("filter", filter),
		zap.Int("processes", len(exp)), zap.Bool("observed", obs != nil))
	return obs, exp, nil
}

// ListDirs returns the top-level directory names of a ROOT file in sorted order.
func (r *FileReader) ListDirs(file string) ([]string, error) {
	f, err := r.open(file)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var dirs []string
	for _, key := range f.Keys() {
		if key.ClassName() == "TDirectoryFile" || key.ClassName() == "TDirectory" {
			dirs = append(dirs, key.Name())
		}
	}
	sort.Strings(dirs)
	return slices.Compact(dirs), nil
}

// Close closes every file opened by the reader.
func (r *FileReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for path, f := range r.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		delete(r.files, path)
	}
	return errors.Join(errs...)
}

// SortedNames returns the keys of a histogram map in sorted order.
func SortedNames(m map[string]*hist.Hist) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
