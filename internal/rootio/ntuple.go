package rootio

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/topljets/cardgen/internal/hist"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
	"go.uber.org/zap"
)

// DefaultTreeName is the tree holding the selected events.
const DefaultTreeName = "data"

// HistSpec describes a histogram to fill from an ntuple.
type HistSpec struct {
	Name      string
	Var       string // expression of the filled quantity
	Selection string // boolean expression, empty selects everything
	Weight    string // weight expression, empty means 1
	NBins     int
	Min, Max  float64
}

// NormalizeExpr rewrites a ROOT cut string into the expression language:
// a lone '&' becomes '&&' and surrounding blanks are trimmed.
func NormalizeExpr(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		if r == '&' && (i == 0 || rs[i-1] != '&') && (i == len(rs)-1 || rs[i+1] != '&') {
			b.WriteString("&&")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// compiled holds the programs of one HistSpec.
type compiled struct {
	spec   HistSpec
	value  *vm.Program
	sel    *vm.Program
	weight *vm.Program
}

func compileSpec(spec HistSpec, env map[string]any) (compiled, error) {
	c := compiled{spec: spec}
	var err error
	if c.value, err = expr.Compile(NormalizeExpr(spec.Var), expr.Env(env), expr.AsFloat64()); err != nil {
		return c, fmt.Errorf("invalid variable %q for %s: %w", spec.Var, spec.Name, err)
	}
	if sel := NormalizeExpr(spec.Selection); sel != "" {
		if c.sel, err = expr.Compile(sel, expr.Env(env), expr.AsBool()); err != nil {
			return c, fmt.Errorf("invalid selection %q for %s: %w", spec.Selection, spec.Name, err)
		}
	}
	if w := NormalizeExpr(spec.Weight); w != "" {
		if c.weight, err = expr.Compile(w, expr.Env(env), expr.AsFloat64()); err != nil {
			return c, fmt.Errorf("invalid weight %q for %s: %w", spec.Weight, spec.Name, err)
		}
	}
	return c, nil
}

// fill evaluates the programs on one entry.
func (c compiled) fill(h *hist.Hist, env map[string]any) error {
	if c.sel != nil {
		ok, err := expr.Run(c.sel, env)
		if err != nil {
			return err
		}
		if pass, _ := ok.(bool); !pass {
			return nil
		}
	}
	w := 1.0
	if c.weight != nil {
		v, err := expr.Run(c.weight, env)
		if err != nil {
			return err
		}
		w, _ = v.(float64)
	}
	x, err := expr.Run(c.value, env)
	if err != nil {
		return err
	}
	xv, _ := x.(float64)
	h.Fill(xv, w)
	return nil
}

// Ntuple is a chain of ROOT files sharing a tree.
type Ntuple struct {
	Files  []string
	Tree   string
	logger *zap.Logger
}

// NewNtuple creates a chain over files reading DefaultTreeName.
func NewNtuple(files []string, logger *zap.Logger) *Ntuple {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ntuple{Files: files, Tree: DefaultTreeName, logger: logger}
}

// Fill fills a single histogram.
func (n *Ntuple) Fill(ctx context.Context, spec HistSpec) (*hist.Hist, error) {
	hs, err := n.FillAll(ctx, []HistSpec{spec})
	if err != nil {
		return nil, err
	}
	return hs[0], nil
}

// FillAll fills every spec in a single pass over the chain. Expressions are
// compiled once against the branches of the first file; every scalar branch
// is exposed as a float64 variable. An empty chain yields empty histograms.
func (n *Ntuple) FillAll(ctx context.Context, specs []HistSpec) ([]*hist.Hist, error) {
	out := make([]*hist.Hist, len(specs))
	for i, s := range specs {
		out[i] = hist.New(s.Name, s.Name, s.NBins, s.Min, s.Max)
	}

	var progs []compiled
	for _, path := range n.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		progs, err = n.fillFile(ctx, path, specs, progs, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (n *Ntuple) fillFile(ctx context.Context, path string, specs []HistSpec, progs []compiled, out []*hist.Hist) ([]compiled, error) {
	f, err := groot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ntuple %s: %w", path, err)
	}
	defer f.Close()

	obj, err := riofs.Dir(f).Get(n.Tree)
	if err != nil {
		return nil, fmt.Errorf("failed to find tree %s in %s: %w", n.Tree, path, err)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		return nil, fmt.Errorf("%s:%s is a %T, not a tree", path, n.Tree, obj)
	}

	var rvars []rtree.ReadVar
	for _, rv := range rtree.NewReadVars(tree) {
		if _, ok := scalar(rv.Value); ok {
			rvars = append(rvars, rv)
		}
	}
	env := make(map[string]any, len(rvars))
	for _, rv := range rvars {
		env[rv.Name] = 0.0
	}

	if progs == nil {
		progs = make([]compiled, len(specs))
		for i, s := range specs {
			if progs[i], err = compileSpec(s, env); err != nil {
				return nil, err
			}
		}
	}

	r, err := rtree.NewReader(tree, rvars)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader for %s: %w", path, err)
	}
	defer r.Close()

	err = r.Read(func(rctx rtree.RCtx) error {
		if rctx.Entry%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for _, rv := range rvars {
			env[rv.Name], _ = scalar(rv.Value)
		}
		for i, p := range progs {
			if err := p.fill(out[i], env); err != nil {
				return fmt.Errorf("entry %d of %s: %w", rctx.Entry, path, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	n.logger.Debug("filled histograms from ntuple",
		zap.String("path", path), zap.Int64("entries", tree.Entries()), zap.Int("histograms", len(specs)))
	return progs, nil
}

// scalar converts a pointer to a numeric or boolean branch value into a float64.
func scalar(v any) (float64, bool) {
	switch p := v.(type) {
	case *float64:
		return *p, true
	case *float32:
		return float64(*p), true
	case *int64:
		return float64(*p), true
	case *int32:
		return float64(*p), true
	case *int16:
		return float64(*p), true
	case *int8:
		return float64(*p), true
	case *uint64:
		return float64(*p), true
	case *uint32:
		return float64(*p), true
	case *uint16:
		return float64(*p), true
	case *uint8:
		return float64(*p), true
	case *bool:
		if *p {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
