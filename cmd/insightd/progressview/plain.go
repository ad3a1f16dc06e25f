package progressview

import (
	"fmt"
	"io"

	"github.com/Aman-CERP/insightd/internal/pipeline"
)

// plainRenderer writes one line per snapshot, suitable for CI logs and
// redirected output (internal/ui.PlainRenderer's non-interactive twin).
type plainRenderer struct {
	out   io.Writer
	names func(string) string
}

func newPlainRenderer(cfg Config) *plainRenderer {
	return &plainRenderer{out: cfg.Output, names: cfg.Names}
}

func (r *plainRenderer) Start() error { return nil }

func (r *plainRenderer) Update(snap pipeline.Snapshot) {
	name := r.names(snap.CollectionID)
	for _, stage := range stageOrder {
		c := snap.Stages[stage]
		if c.Pending == 0 && c.Active == 0 && c.Completed == 0 && c.Failed == 0 {
			continue
		}
		fmt.Fprintf(r.out, "[%s] %-7s pending=%d active=%d completed=%d failed=%d\n",
			name, stage, c.Pending, c.Active, c.Completed, c.Failed)
	}
}

func (r *plainRenderer) Stop() error { return nil }
