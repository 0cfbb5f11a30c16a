package core

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/topljets/cardgen/internal/contract"
	"github.com/topljets/cardgen/internal/hist"
	"github.com/topljets/cardgen/internal/rootio"
	"github.com/topljets/cardgen/schema"
	"go.uber.org/zap"
)

func makeHist(name string, content ...float64) *hist.Hist {
	h := hist.New(name, name, len(content), 0, float64(len(content)))
	for i, v := range content {
		h.Content[i+1] = v
		h.SumW2[i+1] = v
	}
	return h
}

// memReader serves distributions from memory, keyed by "file:dir" and
// "file:dir[row]" for variation rows. A histogram named data_obs is the
// observation.
type memReader struct {
	dirs  map[string]map[string]*hist.Hist
	calls []string
}

var _ rootio.DistReader = &memReader{}

func newMemReader() *memReader {
	return &memReader{dirs: make(map[string]map[string]*hist.Hist)}
}

func (m *memReader) add(file, dir string, hs ...*hist.Hist) *memReader {
	key := file + ":" + dir
	if m.dirs[key] == nil {
		m.dirs[key] = make(map[string]*hist.Hist)
	}
	for _, h := range hs {
		m.dirs[key][h.Name] = h
	}
	return m
}

// addRow registers the histograms of the variation row stored in dir.
func (m *memReader) addRow(file, dir, row string, hs ...*hist.Hist) *memReader {
	return m.add(file, dir+"["+row+"]", hs...)
}

func (m *memReader) Dists(_ context.Context, file, dir, filter string) (*hist.Hist, map[string]*hist.Hist, error) {
	m.calls = append(m.calls, file+":"+dir+"|"+filter)
	return m.read(file, dir, filter)
}

func (m *memReader) Rows(_ context.Context, file, dir, row, filter string) (*hist.Hist, map[string]*hist.Hist, error) {
	m.calls = append(m.calls, file+":"+dir+"["+row+"]|"+filter)
	if _, ok := m.dirs[file+":"+dir+"["+row+"]"]; !ok {
		for key := range m.dirs {
			if strings.HasPrefix(key, file+":"+dir+"[") {
				return nil, nil, fmt.Errorf("%s:%s[%s]: %w", file, dir, row, rootio.ErrRowNotFound)
			}
		}
	}
	return m.read(file, dir+"["+row+"]", filter)
}

func (m *memReader) read(file, dir, filter string) (*hist.Hist, map[string]*hist.Hist, error) {
	hs, ok := m.dirs[file+":"+dir]
	if !ok {
		return nil, nil, fmt.Errorf("%s:%s: %w", file, dir, rootio.ErrDirNotFound)
	}
	var obs *hist.Hist
	exp := make(map[string]*hist.Hist)
	for name, h := range hs {
		if name == rootio.ObservedName {
			obs = h.Clone("")
			continue
		}
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		exp[name] = h.Clone("")
	}
	return obs, exp, nil
}

// writePlotter writes a plotter-like ROOT file with one directory per entry
// of dirs and of tables.
func writePlotter(t *testing.T, name string, dirs map[string][]*hist.Hist, tables map[string][]rootio.RowTable) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	shapes := rootio.NewShapesFile()
	for dir, hs := range dirs {
		for _, h := range hs {
			shapes.Put(dir, h)
		}
	}
	for dir, ts := range tables {
		for _, tab := range ts {
			shapes.PutRows(dir, tab)
		}
	}
	require.NoError(t, shapes.Write(path))
	return path
}

// plotterRows returns the 2-D histograms of a variation directory: one per
// process, with one labelled row per variation.
func plotterRows(dir string, labels []string, procs map[string][][]float64) []rootio.RowTable {
	var ts []rootio.RowTable
	for proc, rows := range procs {
		tab := rootio.RowTable{Name: dir + "_" + proc, Labels: labels}
		for _, content := range rows {
			tab.Rows = append(tab.Rows, makeHist(proc, content...))
		}
		ts = append(ts, tab)
	}
	return ts
}

// plotterDir returns the histograms of one plotter directory: the
// observation (when obs is not nil) and one histogram per process.
func plotterDir(dir string, obs []float64, procs map[string][]float64) []*hist.Hist {
	base, _, _ := strings.Cut(dir, "/")
	var hs []*hist.Hist
	if obs != nil {
		hs = append(hs, makeHist(base, obs...))
	}
	for proc, content := range procs {
		hs = append(hs, makeHist(base+"_"+proc, content...))
	}
	return hs
}

func testHypoTestConfig(input, systInput, outDir string) *contract.HypoTestConfig {
	return &contract.HypoTestConfig{
		CommonConfig: contract.CommonConfig{Output: schema.TextOut, Workers: 1},
		Combine:      "/opt/combine",
		Input:        input,
		SystInput:    systInput,
		Dist:         "minmlb",
		OutputDir:    outDir,
		Rebin:        1,
		PseudoData:   -1,
		MainHypo:     100,
		AltHypo:      400,
		Signals:      []string{"tbart"},
		Categories:   []string{"EE1blowpt"},
		Mirror:       schema.MirrorNominal,
	}
}

func testGenerator(cfg *contract.HypoTestConfig, reader rootio.DistReader, catalog schema.Catalog) *hypoTestGenerator {
	logger := zap.NewNop()
	return &hypoTestGenerator{
		cfg:     cfg,
		loader:  &distLoader{cfg: cfg, reader: reader, signals: newSignalSet(cfg.Signals, cfg.MainHypo, cfg.AltHypo), logger: logger},
		catalog: catalog,
		shapes:  rootio.NewShapesFile(),
		scaler:  newPseudoScaler(1),
		author:  "tester with git hash abc1234",
		logger:  logger,
	}
}
