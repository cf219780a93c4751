package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// versionWidth is how much of a fingerprint the table shows
const versionWidth = 12

// ReleasesRenderer renders the registry of one network
type ReleasesRenderer struct {
	out io.Writer
}

// NewReleasesRenderer creates a new releases renderer
func NewReleasesRenderer(out io.Writer) *ReleasesRenderer {
	return &ReleasesRenderer{out: out}
}

// Render implements Renderer
func (r *ReleasesRenderer) Render(result *usecase.ReleaseListResult) error {
	return r.RenderReleaseList(result)
}

// RenderReleaseList renders one table per contract type, oldest first
func (r *ReleasesRenderer) RenderReleaseList(result *usecase.ReleaseListResult) error {
	if result.Total == 0 {
		fmt.Fprintf(r.out, "No releases found on %s\n", result.Network)
		return nil
	}

	color.New(color.Bold).Fprintf(r.out, "Releases on %s (%d)\n\n", result.Network, result.Total)

	for _, group := range result.Groups {
		color.New(color.FgCyan, color.Bold).Fprintf(r.out, "%s\n", group.ContractType)
		fmt.Fprintln(r.out, recordsTable(group.Records))
		fmt.Fprintln(r.out)
	}
	return nil
}

func recordsTable(records []models.DeploymentRecord) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box = table.BoxStyle{
		PaddingLeft:  "  ",
		PaddingRight: "  ",
	}

	t.AppendHeader(table.Row{"TAG", "ADDRESS", "KIND", "IMPLEMENTATION", "VERSION", "DATE"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft},
		{Number: 4, Align: text.AlignLeft},
		{Number: 5, Align: text.AlignLeft},
		{Number: 6, Align: text.AlignLeft},
	})

	for _, record := range records {
		impl := "-"
		if addr, ok := record.Deployment.Implementation(); ok {
			impl = addr.Hex()
		}
		t.AppendRow(table.Row{
			color.New(color.FgMagenta).Sprint(record.DisplayTag()),
			record.Address.Hex(),
			kindLabel(record.Deployment.IsUpgradable()),
			impl,
			shortVersion(record.Version),
			record.Date.UTC().Format("2006-01-02 15:04"),
		})
	}

	return t.Render()
}

func shortVersion(version string) string {
	if len(version) <= versionWidth {
		return version
	}
	return version[:versionWidth]
}
