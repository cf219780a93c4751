package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// FingerprintRenderer renders the version fingerprint of an artifact
type FingerprintRenderer struct {
	out io.Writer
}

// NewFingerprintRenderer creates a new fingerprint renderer
func NewFingerprintRenderer(out io.Writer) *FingerprintRenderer {
	return &FingerprintRenderer{out: out}
}

// Render implements Renderer
func (r *FingerprintRenderer) Render(result *usecase.FingerprintResult) error {
	fmt.Fprintf(r.out, "%s %s\n", color.New(color.FgCyan, color.Bold).Sprint(result.Artifact), result.Version)
	fmt.Fprintf(r.out, "  bytecode: %d bytes", result.BytecodeSize)
	if result.MetadataStripped > 0 {
		fmt.Fprintf(r.out, " (%d bytes of metadata ignored)", result.MetadataStripped)
	}
	fmt.Fprintln(r.out)
	return nil
}
