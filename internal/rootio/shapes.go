package rootio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/topljets/cardgen/internal/hist"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/riofs"
)

// ShapesFile collects histograms per directory in memory and writes them to
// a ROOT file in one go. The empty directory name is the top level.
// A ShapesFile is not safe for concurrent use.
type ShapesFile struct {
	dirs   []string
	hists  map[string]map[string]*hist.Hist
	tables map[string]map[string]RowTable
}

// NewShapesFile creates an empty shapes collection.
func NewShapesFile() *ShapesFile {
	return &ShapesFile{
		hists:  make(map[string]map[string]*hist.Hist),
		tables: make(map[string]map[string]RowTable),
	}
}

func (s *ShapesFile) addDir(dir string) {
	if _, ok := s.hists[dir]; ok {
		return
	}
	s.hists[dir] = make(map[string]*hist.Hist)
	s.tables[dir] = make(map[string]RowTable)
	s.dirs = append(s.dirs, dir)
}

// Put stores h under dir using its own name, replacing any previous entry.
func (s *ShapesFile) Put(dir string, h *hist.Hist) {
	s.addDir(dir)
	s.hists[dir][h.Name] = h
}

// PutRows stores t under dir as a 2-D histogram with one labelled Y row per
// variation, replacing any previous entry of the same name.
func (s *ShapesFile) PutRows(dir string, t RowTable) {
	s.addDir(dir)
	s.tables[dir][t.Name] = t
}

// PutAll stores a copy of every histogram of hs under dir, named by its map
// key and rebinned by rebin when rebin > 1.
func (s *ShapesFile) PutAll(dir string, hs map[string]*hist.Hist, rebin int) {
	for _, name := range SortedNames(hs) {
		h := hs[name].Clone(name)
		h.Rebin(rebin)
		s.Put(dir, h)
	}
}

// Get returns the histogram stored as dir/name.
func (s *ShapesFile) Get(dir, name string) (*hist.Hist, bool) {
	h, ok := s.hists[dir][name]
	return h, ok
}

// Dirs returns the directories in insertion order.
func (s *ShapesFile) Dirs() []string {
	return append([]string(nil), s.dirs...)
}

// Len returns the number of stored histograms.
func (s *ShapesFile) Len() int {
	n := 0
	for dir, m := range s.hists {
		n += len(m) + len(s.tables[dir])
	}
	return n
}

// Write creates the ROOT file at path, overwriting any existing file.
func (s *ShapesFile) Write(path string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	f, err := groot.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ROOT file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close ROOT file %s: %w", path, cerr)
		}
	}()

	for _, dir := range s.dirs {
		var target riofs.Directory = f
		if dir != "" {
			target, err = mkdirAll(f, dir)
			if err != nil {
				return fmt.Errorf("failed to create directory %s in %s: %w", dir, path, err)
			}
		}
		names := make([]string, 0, len(s.hists[dir]))
		for name := range s.hists[dir] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			obj := rhist.NewH1DFrom(ToHBook(s.hists[dir][name]))
			if err := target.Put(name, obj); err != nil {
				return fmt.Errorf("failed to write %s/%s to %s: %w", dir, name, path, err)
			}
		}
		tables := make([]string, 0, len(s.tables[dir]))
		for name := range s.tables[dir] {
			tables = append(tables, name)
		}
		sort.Strings(tables)
		for _, name := range tables {
			obj, err := s.tables[dir][name].ToROOT()
			if err != nil {
				return fmt.Errorf("failed to convert %s/%s: %w", dir, name, err)
			}
			if err := target.Put(name, obj); err != nil {
				return fmt.Errorf("failed to write %s/%s to %s: %w", dir, name, path, err)
			}
		}
	}
	return nil
}

// mkdirAll returns the directory at path, creating missing path elements.
func mkdirAll(root riofs.Directory, path string) (riofs.Directory, error) {
	cur := root
	for _, seg := range strings.Split(path, "/") {
		if obj, err := cur.Get(seg); err == nil {
			d, ok := obj.(riofs.Directory)
			if !ok {
				return nil, fmt.Errorf("%s is a %T, not a directory", seg, obj)
			}
			cur = d
			continue
		}
		d, err := cur.Mkdir(seg)
		if err != nil {
			return nil, err
		}
		cur = d
	}
	return cur, nil
}
