package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trebuchet-org/treb-release/internal/cli/render"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// deployOptions holds the deploy flags. The *Set fields record whether a
// flag was given so it can override the contract preset.
type deployOptions struct {
	network          string
	artifact         string
	tag              string
	tagSet           bool
	args             []string
	argsFile         string
	confirmations    int
	confirmationsSet bool
	upgradable       bool
	upgradableSet    bool
	initializer      string
	initializerSet   bool
	skipVerify       bool
}

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	opts := &deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy <contract-type>",
		Short: "Deploy a contract and record it in the registry",
		Long: `Deploy a compiled contract to a network and append a deployment record to
deployments/<network>.json.

Upgradable contracts are deployed behind an ERC1967 proxy. The logic contract
is reused when the OpenZeppelin manifest already has an implementation with
the same bytecode. Constructor or initializer arguments come from the
[contracts.<type>] preset in treb-release.toml, an --args-file and --arg
flags, in that order of precedence (last wins).

The record is written as soon as the deployment transaction is mined, before
waiting for confirmations and before source verification, so a failure in
either of those never loses the record.`,
		Example: `  # Deploy the tribe contract to BSC with a tag
  treb-release deploy tribe --network bsc --tag tribe-prod --arg _admin=0x822D71E46806081FA348aAB60A7b824B91e57825

  # Deploy behind a proxy and call initialize()
  treb-release deploy tribe -n bsc --upgradable --initializer initialize --args-file args/tribe.yaml

  # Skip source verification
  treb-release deploy token -n bscTestnet --skip-verify`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			opts.tagSet = cmd.Flags().Changed("tag")
			opts.confirmationsSet = cmd.Flags().Changed("confirmations")
			opts.upgradableSet = cmd.Flags().Changed("upgradable")
			opts.initializerSet = cmd.Flags().Changed("initializer")

			params, err := buildReleaseParams(app.Config.Release, args[0], opts)
			if err != nil {
				return err
			}

			result, err := app.ReleaseContract.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), render.ReleaseJSON(result))
			}
			return render.NewReleaseRenderer(cmd.OutOrStdout()).RenderRelease(result)
		},
	}

	cmd.Flags().StringVarP(&opts.network, "network", "n", "", "Network to deploy to (name from foundry.toml [rpc_endpoints])")
	cmd.Flags().StringVar(&opts.artifact, "artifact", "", "Compiled contract name or path:Name (defaults to the contract type)")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "Human label for this deployment")
	cmd.Flags().StringArrayVar(&opts.args, "arg", nil, "Constructor/initializer argument as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.argsFile, "args-file", "", "YAML or JSON file mapping argument names to values")
	cmd.Flags().IntVar(&opts.confirmations, "confirmations", 0, "Blocks to wait for after the deployment is mined")
	cmd.Flags().BoolVar(&opts.upgradable, "upgradable", false, "Deploy behind an upgradeable proxy")
	cmd.Flags().StringVar(&opts.initializer, "initializer", "", "Method called with the arguments instead of the constructor (by the proxy constructor when upgradable)")
	cmd.Flags().BoolVar(&opts.skipVerify, "skip-verify", false, "Skip source verification")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}

// buildReleaseParams merges the contract preset with the flags. Flags win
// over the preset, and --arg values win over --args-file values.
func buildReleaseParams(release *config.ReleaseFileConfig, contractType string, opts *deployOptions) (usecase.ReleaseParams, error) {
	preset, _ := release.Preset(contractType)

	params := usecase.ReleaseParams{
		ContractType:  contractType,
		Artifact:      preset.Artifact,
		Network:       opts.network,
		Tag:           preset.Tag,
		Confirmations: preset.Confirmations,
		Upgradable:    preset.Upgradable,
		Initializer:   preset.Initializer,
		SkipVerify:    opts.skipVerify || !release.VerifyEnabled(),
		Args:          models.Args{},
	}

	if opts.artifact != "" {
		params.Artifact = opts.artifact
	}
	if opts.tagSet {
		params.Tag = opts.tag
	}
	if opts.upgradableSet {
		params.Upgradable = opts.upgradable
	}
	if opts.initializerSet {
		params.Initializer = opts.initializer
	}
	if opts.confirmationsSet {
		if opts.confirmations < 0 {
			return params, fmt.Errorf("--confirmations must not be negative")
		}
		params.Confirmations = opts.confirmations
	}
	if params.Confirmations <= 0 {
		params.Confirmations = release.ConfirmationCount()
	}

	for k, v := range preset.Args {
		params.Args[k] = v
	}

	if opts.argsFile != "" {
		fileArgs, err := readArgsFile(opts.argsFile)
		if err != nil {
			return params, err
		}
		for k, v := range fileArgs {
			params.Args[k] = v
		}
	}

	for _, raw := range opts.args {
		name, value, err := parseArgFlag(raw)
		if err != nil {
			return params, err
		}
		params.Args[name] = value
	}

	return params, nil
}

// readArgsFile reads a YAML (or JSON, which is YAML) mapping of argument
// names to values
func readArgsFile(path string) (models.Args, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read args file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse args file %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return models.Args{}, nil
	}

	value, err := nodeValue(doc.Content[0])
	if err != nil {
		return nil, fmt.Errorf("args file %s: %w", path, err)
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("args file %s must contain a mapping of argument names to values", path)
	}
	return models.Args(m), nil
}

// parseArgFlag parses name=value. Values starting with [ or { are parsed
// as YAML flow collections, e.g. --arg 'owners=[0xabc, 0xdef]'.
func parseArgFlag(raw string) (string, any, error) {
	name, value, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid --arg %q: expected name=value", raw)
	}

	if !strings.HasPrefix(value, "[") && !strings.HasPrefix(value, "{") {
		return name, value, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(value), &node); err != nil {
		return "", nil, fmt.Errorf("invalid --arg %s: %w", name, err)
	}
	parsed, err := nodeValue(node.Content[0])
	if err != nil {
		return "", nil, fmt.Errorf("invalid --arg %s: %w", name, err)
	}
	return name, parsed, nil
}

// nodeValue converts a YAML node to plain values. Hex literals and integers
// that do not fit in an int64 stay strings so addresses and uint256 amounts
// reach the ABI encoder intact.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := nodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	case yaml.ScalarNode:
		return scalarValue(n), nil
	default:
		return nil, fmt.Errorf("unsupported value at line %d", n.Line)
	}
}

func scalarValue(n *yaml.Node) any {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		if b, err := strconv.ParseBool(n.Value); err == nil {
			return b
		}
	case "!!int":
		lower := strings.ToLower(n.Value)
		if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
			return n.Value
		}
		if i, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
			return i
		}
	}
	return n.Value
}
