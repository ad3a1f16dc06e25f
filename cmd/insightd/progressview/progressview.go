// Package progressview renders pipeline.Tracker snapshots to a terminal:
// a TTY-detection-picks-a-renderer shape, widened from a single global
// scan/chunk/embed/index progress bar to one row per (collection, stage)
// pair, since pipeline progress is tracked per collection rather than
// for one project as a whole.
package progressview

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/insightd/internal/pipeline"
)

// Renderer displays a stream of progress snapshots to a terminal.
type Renderer interface {
	// Start begins rendering. Called once before the first Update.
	Start() error
	// Update renders a new snapshot for one collection.
	Update(snap pipeline.Snapshot)
	// Stop finalizes rendering and releases any terminal resources.
	Stop() error
}

// Config configures a Renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Names maps collection id to its display name, consulted by both
	// renderers so rows read "Tax 2024" instead of a 64-char hex id.
	Names func(collectionID string) string
}

// NewRenderer picks a TUI renderer for an interactive terminal and a
// plain line-oriented renderer otherwise (CI logs, redirected output,
// explicit --plain), mirroring internal/ui.NewRenderer's decision order.
func NewRenderer(cfg Config) Renderer {
	if cfg.Names == nil {
		cfg.Names = func(id string) string { return id }
	}

	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return newPlainRenderer(cfg)
	}

	tui, err := newTUIRenderer(cfg)
	if err != nil {
		return newPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectCI reports whether common CI environment variables are set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set (https://no-color.org).
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// stageOrder is the fixed left-to-right column order both renderers use.
var stageOrder = [...]pipeline.Stage{
	pipeline.StageStore,
	pipeline.StageExtract,
	pipeline.StageEmbed,
	pipeline.StageIndex,
}
