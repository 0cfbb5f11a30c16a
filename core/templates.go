package core

import (
	"fmt"
	"strings"

	"github.com/topljets/cardgen/internal/hist"
)

// defineProcessTemplates turns a nominal histogram and its variations into
// the templates of a process. Variations not named Up/Down are one-sided:
// they are renamed Up and mirrored into a Down template. Every template is
// normalised to the nominal yield and empty bins are floored.
func defineProcessTemplates(histos []*hist.Hist) ([]*hist.Hist, error) {
	if len(histos) == 0 {
		return nil, nil
	}
	nom := histos[0]
	nomStats := nom.Integral()

	templates := []*hist.Hist{nom}
	for _, h := range histos[1:] {
		templates = append(templates, h)
		if strings.Contains(h.Name, "Up") || strings.Contains(h.Name, "Down") {
			continue
		}
		key := h.Name
		h.Name = key + "Up"
		down, err := hist.MirrorRatio(nom, h)
		if err != nil {
			return nil, fmt.Errorf("mirror %s: %w", key, err)
		}
		down.Name = key + "Down"
		templates = append(templates, down)
	}

	for _, h := range templates {
		hist.NormalizeTo(h, nomStats)
		hist.FloorEmpty(h, hist.TemplateFloor)
	}
	return templates, nil
}
