package progress

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// ReleaseProgress reports pipeline stages with a spinner in interactive
// mode and one line per stage otherwise
type ReleaseProgress struct {
	out         io.Writer
	interactive bool
	spinner     *spinner.Spinner
	startTime   time.Time
	lastStage   string
}

// NewReleaseProgress creates a new release progress reporter
func NewReleaseProgress(out io.Writer, interactive bool) *ReleaseProgress {
	return &ReleaseProgress{
		out:         out,
		interactive: interactive,
		startTime:   time.Now(),
	}
}

// OnProgress handles progress events
func (p *ReleaseProgress) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	if event.Stage == usecase.StageDone {
		p.stop()
		color.New(color.FgGreen).Fprintf(p.out, "✅ %s in %s\n", event.Message, time.Since(p.startTime).Round(time.Millisecond))
		return
	}

	if !p.interactive {
		if event.Message != "" && event.Stage != p.lastStage {
			fmt.Fprintf(p.out, "%s %s\n", stageIcon(event.Stage), event.Message)
		}
		p.lastStage = event.Stage
		return
	}

	if !event.Spinner {
		p.stop()
		return
	}
	if p.spinner == nil {
		p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		p.spinner.Writer = p.out
		_ = p.spinner.Color("cyan", "bold")
	}
	p.spinner.Suffix = " " + event.Message
	if !p.spinner.Active() {
		p.spinner.Start()
	}
	p.lastStage = event.Stage
}

// Info prints an info message
func (p *ReleaseProgress) Info(message string) {
	wasActive := p.stop()
	color.New(color.FgCyan).Fprintln(p.out, "ℹ️  "+message)
	if wasActive {
		p.spinner.Start()
	}
}

// Error prints an error message. Errors end the run, so the spinner stays
// stopped.
func (p *ReleaseProgress) Error(message string) {
	p.stop()
	color.New(color.FgRed).Fprintln(p.out, "❌ "+message)
}

func (p *ReleaseProgress) stop() bool {
	if p.spinner != nil && p.spinner.Active() {
		p.spinner.Stop()
		return true
	}
	return false
}

func stageIcon(stage string) string {
	switch stage {
	case usecase.StageConnect:
		return "🌐"
	case usecase.StageDeploy:
		return "🚀"
	case usecase.StageInitialize:
		return "⚙️ "
	case usecase.StageResolve:
		return "🔍"
	case usecase.StagePersist:
		return "📝"
	case usecase.StageConfirm:
		return "⏳"
	case usecase.StageVerify:
		return "🔎"
	default:
		return "•"
	}
}

// Ensure it implements the interface
var _ usecase.ProgressSink = (*ReleaseProgress)(nil)
