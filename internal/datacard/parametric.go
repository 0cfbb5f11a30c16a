package datacard

import (
	"fmt"
	"io"
)

// ParametricWriter emits the per-category cards of the PPS binned workspace:
// a fiducial signal, an out-of-fiducial signal and a data-driven background.
type ParametricWriter struct {
	ShapesURL  string // shapes file, relative to the card
	FinalState string // mm, ee or g
	Options    string // echoed in the header
}

// FileName returns the card name for category cat.
func (p ParametricWriter) FileName(cat string) string {
	return fmt.Sprintf("shapes-parametric.datacard_%s.dat", cat)
}

// Write writes the card of category cat to w.
func (p ParametricWriter) Write(w io.Writer, cat string) error {
	dw := NewWriter(w)
	dw.printf("#\n")
	dw.printf("# datacard was automatically generated with cardgen workspace\n")
	dw.printf("# the options passed are printed below\n")
	dw.printf("# %s\n", p.Options)
	dw.printf("#\n")
	dw.printf("imax *\njmax *\nkmax *\n")
	dw.Separator()

	dw.printf("shapes fidsig    * %s $PROCESS_%s_m$MASS $PROCESS_%s_m$MASS_$SYSTEMATIC\n", p.ShapesURL, cat, cat)
	dw.printf("shapes outfidsig * %s $PROCESS_%s_m$MASS $PROCESS_%s_m$MASS_$SYSTEMATIC\n", p.ShapesURL, cat, cat)
	dw.printf("shapes bkg       * %s $PROCESS_%s        $PROCESS_$SYSTEMATIC\n", p.ShapesURL, cat)
	dw.printf("shapes data_obs  * %s $PROCESS_%s\n", p.ShapesURL, cat)
	dw.Separator()

	dw.printf("bin %s\n", cat)
	dw.printf("observation -1\n")
	dw.Separator()

	row4 := func(a, b, c, d string) { dw.printf("%15s %15s %15s %15s\n", a, b, c, d) }
	row4("bin", cat, cat, cat)
	row4("process", "fidsig", "outfidsig", "bkg")
	row4("process", "0", "1", "2")
	row4("rate", "-1", "-1", "-1")
	dw.Separator()

	syst := func(name, pdf, fid, outfid, bkg string) {
		dw.printf("%-22s %8s %15s %15s %15s\n", name, pdf, fid, outfid, bkg)
	}
	syst("lumi", "lnN", "1.027", Unaffected, Unaffected)
	syst("eff_"+p.FinalState, "lnN", "1.03", Unaffected, Unaffected)
	syst("sigShape", "shape", "1", "1", Unaffected)
	syst("sigCalib", "shape", "1", "1", Unaffected)
	syst("sigPzModel", "shape", "1", "1", Unaffected)
	syst(cat+"_bkgShape", "shape", Unaffected, Unaffected, "1")
	syst(cat+"_bkgShapeSingleDiff", "shape", Unaffected, Unaffected, "1")

	dw.printf("%s autoMCStats 0.0 1\n", cat)
	dw.printf("mu_bkg       rateParam * bkg       1\n")
	dw.printf("mu_outfidsig rateParam * outfidsig 0\n")
	return dw.Err()
}
