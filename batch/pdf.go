package batch

import (
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// bundle writes the successful images of res, in result order, into
// "<batchID>.pdf" with one page per image sized to the image. A bundle
// failure is logged and leaves the per-image results untouched.
func (o *Orchestrator) bundle(res *Result) {
	var files []string
	for _, jr := range res.Results {
		if jr.Success {
			files = append(files, filepath.Join(o.cfg.OutputDir, jr.Filename))
		}
	}
	if len(files) == 0 {
		return
	}
	name := res.BatchID + ".pdf"
	out := filepath.Join(o.cfg.OutputDir, name)
	_ = os.Remove(out)

	imp, err := api.Import("pos:full", types.POINTS)
	if err != nil {
		o.logger.Warn("batch: pdf import config", "error", err)
		return
	}
	if err := api.ImportImagesFile(files, out, imp, model.NewDefaultConfiguration()); err != nil {
		o.logger.Warn("batch: pdf bundle", "batch", res.BatchID, "error", err)
		return
	}
	res.PDF = o.publicURL(name)
}
