package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/trebuchet-org/treb-release/internal/domain"
)

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatError formats an error message with the error icon. Release
// failures are prefixed with the stage they stopped at.
func FormatError(err error) string {
	var releaseErr *domain.ReleaseError
	if errors.As(err, &releaseErr) {
		msg := fmt.Sprintf("%s failed for %s on %s: %v",
			StageTitle(releaseErr.Stage), releaseErr.ContractType, releaseErr.Network, releaseErr.Err)
		if releaseErr.Address != nil {
			msg += fmt.Sprintf("\n   Contract was deployed at %s but no record was written", releaseErr.Address.Hex())
		}
		return color.New(color.FgRed).Sprintf("❌ %s", msg)
	}

	msg := err.Error()
	if len(msg) > 0 {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}
	return color.New(color.FgRed).Sprintf("❌ %s", msg)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// JSON writes v as indented JSON
func JSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
