package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

var titleCaser = cases.Title(language.English)

// ReleaseRenderer renders the outcome of a release run
type ReleaseRenderer struct {
	out io.Writer
}

// NewReleaseRenderer creates a new release renderer
func NewReleaseRenderer(out io.Writer) *ReleaseRenderer {
	return &ReleaseRenderer{out: out}
}

// Render implements Renderer
func (r *ReleaseRenderer) Render(result *usecase.ReleaseResult) error {
	return r.RenderRelease(result)
}

// RenderRelease renders a successful release with its warnings
func (r *ReleaseRenderer) RenderRelease(result *usecase.ReleaseResult) error {
	record := result.Record
	network := result.Network

	fmt.Fprintln(r.out)
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Released %s on %s (%d)\n",
		result.ContractType, network.Name, network.ChainID)
	fmt.Fprintln(r.out, strings.Repeat("─", 60))

	r.field("Address", color.New(color.FgGreen, color.Bold).Sprint(record.Address.Hex()))
	r.field("Kind", kindLabel(record.Deployment.IsUpgradable()))
	if impl, ok := record.Deployment.Implementation(); ok {
		implDisplay := impl.Hex()
		if result.ImplementationReused {
			implDisplay += color.New(color.Faint).Sprint(" (reused)")
		}
		r.field("Implementation", implDisplay)
	}
	r.field("Version", record.Version)
	r.field("Tag", color.New(color.FgMagenta).Sprint(record.DisplayTag()))
	if result.Transaction != nil {
		r.field("Transaction", fmt.Sprintf("%s %s", result.Transaction.Hash.Hex(),
			color.New(color.Faint).Sprintf("(block %d)", result.Transaction.BlockNumber)))
	}
	r.field("Confirmations", confirmationLabel(result))
	r.field("Verification", verificationLabel(result.Verification))
	if network.BrowserURL != "" {
		r.field("Explorer", fmt.Sprintf("%s/address/%s", strings.TrimSuffix(network.BrowserURL, "/"), record.Address.Hex()))
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(r.out)
		color.New(color.FgYellow, color.Bold).Fprintln(r.out, "Warnings:")
		for _, w := range result.Warnings {
			fmt.Fprintf(r.out, "  %s\n", FormatWarning(warningText(w)))
		}
	}

	fmt.Fprintln(r.out)
	return nil
}

func (r *ReleaseRenderer) field(label, value string) {
	fmt.Fprintf(r.out, "  %-16s %s\n", label+":", value)
}

// StageTitle turns a pipeline stage id into a heading, e.g. "tag-check"
// becomes "Tag Check"
func StageTitle(stage string) string {
	return titleCaser.String(strings.ReplaceAll(stage, "-", " "))
}

func warningText(w usecase.Warning) string {
	msg := fmt.Sprintf("[%s] %s", StageTitle(w.Stage), w.Message)
	if w.Err != nil {
		msg += " (" + w.Err.Error() + ")"
	}
	return msg
}

func kindLabel(upgradable bool) string {
	if upgradable {
		return color.New(color.FgMagenta).Sprint("upgradable")
	}
	return "simple"
}

func confirmationLabel(result *usecase.ReleaseResult) string {
	if result.Confirmed {
		return color.New(color.FgGreen).Sprintf("%d ✓", result.Confirmations)
	}
	return color.New(color.FgYellow).Sprintf("%d (not confirmed)", result.Confirmations)
}

func verificationLabel(v usecase.VerificationOutcome) string {
	switch {
	case v.Verified:
		return color.New(color.FgGreen).Sprintf("verified %s", v.Address.Hex())
	case v.SkipReason != "":
		return color.New(color.Faint).Sprintf("skipped (%s)", v.SkipReason)
	case v.Attempted:
		return color.New(color.FgYellow).Sprint("failed")
	default:
		return "-"
	}
}

// releaseJSON is the --json shape of a release
type releaseJSON struct {
	RunID                string                  `json:"runId"`
	Network              string                  `json:"network"`
	ChainID              uint64                  `json:"chainId"`
	ContractType         string                  `json:"contractType"`
	Record               models.DeploymentRecord `json:"record"`
	TxHash               string                  `json:"txHash,omitempty"`
	BlockNumber          uint64                  `json:"blockNumber,omitempty"`
	ImplementationReused bool                    `json:"implementationReused"`
	DuplicateTags        int                     `json:"duplicateTags"`
	Confirmations        int                     `json:"confirmations"`
	Confirmed            bool                    `json:"confirmed"`
	Verified             bool                    `json:"verified"`
	VerifySkipReason     string                  `json:"verifySkipReason,omitempty"`
	Warnings             []warningJSON           `json:"warnings"`
}

type warningJSON struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ReleaseJSON converts a release result to its --json shape
func ReleaseJSON(result *usecase.ReleaseResult) any {
	out := releaseJSON{
		RunID:                result.RunID,
		ContractType:         result.ContractType,
		Record:               result.Record,
		ImplementationReused: result.ImplementationReused,
		DuplicateTags:        result.DuplicateTags,
		Confirmations:        result.Confirmations,
		Confirmed:            result.Confirmed,
		Verified:             result.Verification.Verified,
		VerifySkipReason:     result.Verification.SkipReason,
		Warnings:             make([]warningJSON, 0, len(result.Warnings)),
	}
	if result.Network != nil {
		out.Network = result.Network.Name
		out.ChainID = result.Network.ChainID
	}
	if result.Transaction != nil {
		out.TxHash = result.Transaction.Hash.Hex()
		out.BlockNumber = result.Transaction.BlockNumber
	}
	for _, w := range result.Warnings {
		wj := warningJSON{Stage: w.Stage, Message: w.Message}
		if w.Err != nil {
			wj.Error = w.Err.Error()
		}
		out.Warnings = append(out.Warnings, wj)
	}
	return out
}
