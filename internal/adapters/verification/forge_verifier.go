package verification

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// CommandRunner runs forge with args in dir and returns its combined output
type CommandRunner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// ExecForge runs the forge binary
func ExecForge(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "forge", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// ForgeVerifier verifies sources with `forge verify-contract`
type ForgeVerifier struct {
	projectRoot string
	verifier    config.Verifier
	timeout     time.Duration
	run         CommandRunner
	log         *slog.Logger
}

// NewForgeVerifier creates a verifier
func NewForgeVerifier(projectRoot string, verifier config.Verifier, timeout time.Duration, run CommandRunner, log *slog.Logger) *ForgeVerifier {
	return &ForgeVerifier{
		projectRoot: projectRoot,
		verifier:    verifier,
		timeout:     timeout,
		run:         run,
		log:         log.With("component", "ForgeVerifier"),
	}
}

// NewForgeVerifierFromConfig creates a verifier from the [verify] section
func NewForgeVerifierFromConfig(cfg *config.RuntimeConfig, log *slog.Logger) *ForgeVerifier {
	return NewForgeVerifier(cfg.ProjectRoot, cfg.Release.Verify.Verifier, cfg.Release.VerifyTimeout(), ExecForge, log)
}

// Verify performs contract verification
func (v *ForgeVerifier) Verify(ctx context.Context, req models.VerificationRequest) error {
	if req.Artifact == nil {
		return fmt.Errorf("no artifact to verify %s against", req.Address.Hex())
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	args := v.BuildArgs(req)
	v.log.Debug("running forge", "args", strings.Join(redact(args), " "))

	output, err := v.run(ctx, v.projectRoot, args...)
	outputStr := strings.TrimSpace(string(output))
	if isAlreadyVerified(outputStr) {
		// Contract is already verified, not an error
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("verification timed out after %s: %w", v.timeout, ctx.Err())
		}
		return fmt.Errorf("verification failed: %s", outputStr)
	}

	if strings.Contains(outputStr, "Contract successfully verified") {
		return nil
	}
	return fmt.Errorf("verification status unclear: %s", outputStr)
}

// BuildArgs builds the forge verify-contract arguments
func (v *ForgeVerifier) BuildArgs(req models.VerificationRequest) []string {
	args := []string{
		"verify-contract",
		req.Address.Hex(),
		req.Artifact.FullyQualifiedName(),
		"--chain-id", fmt.Sprintf("%d", req.ChainID),
		"--watch",
	}

	if v.verifier == config.VerifierSourcify {
		args = append(args, "--verifier", "sourcify")
	} else {
		if req.ExplorerURL != "" {
			args = append(args, "--verifier-url", req.ExplorerURL)
		}
		apiKey := req.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ETHERSCAN_API_KEY")
		}
		if apiKey != "" {
			args = append(args, "--etherscan-api-key", apiKey)
		}
	}

	if req.Artifact.CompilerVersion != "" {
		args = append(args, "--compiler-version", req.Artifact.CompilerVersion)
	}
	if len(req.ConstructorArgs) > 0 {
		args = append(args, "--constructor-args", hex.EncodeToString(req.ConstructorArgs))
	}

	return args
}

func isAlreadyVerified(output string) bool {
	return strings.Contains(output, "Already Verified") ||
		strings.Contains(output, "is already verified") ||
		strings.Contains(output, "already verified")
}

// redact hides the API key in logged commands
func redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--etherscan-api-key" {
			out[i+1] = "***"
		}
	}
	return out
}

// Ensure the verifier implements the interface
var _ usecase.ContractVerifier = (*ForgeVerifier)(nil)
