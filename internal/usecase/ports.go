package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// ChainClient deploys contracts and sends transactions on one network.
// Deploy and Call return once the transaction is included and succeeded.
type ChainClient interface {
	Connect(ctx context.Context, network *config.Network) error
	Sender() common.Address
	Deploy(ctx context.Context, bytecode []byte, ctorArgs []byte) (common.Address, *models.TxHandle, error)
	Call(ctx context.Context, to common.Address, calldata []byte) (*models.TxHandle, error)
	WaitForConfirmations(ctx context.Context, tx *models.TxHandle, confirmations int) error
}

// ManifestReader reads the upgrade manifest for a network
type ManifestReader interface {
	ReadManifest(ctx context.Context, network *config.Network) (*models.UpgradeManifest, error)
}

// ProxyDeployment is the outcome of deploying an upgradable instance
type ProxyDeployment struct {
	Proxy                common.Address
	Implementation       common.Address
	ImplementationReused bool
	ProxyTx              *models.TxHandle
	ImplementationTx     *models.TxHandle // nil when reused
}

// ProxyDeployer deploys (or reuses) a logic contract, registers it in the
// upgrade manifest and deploys a proxy in front of it. initData is passed to
// the proxy constructor so initialization happens in the creation
// transaction; a failure of that transaction matches domain.ErrProxyConstructor.
type ProxyDeployer interface {
	DeployProxy(ctx context.Context, network *config.Network, logic *models.Artifact, initData []byte) (*ProxyDeployment, error)
}

// ContractVerifier handles contract verification
type ContractVerifier interface {
	Verify(ctx context.Context, req models.VerificationRequest) error
}

// RecordStore persists the per-network deployment registry.
// Load on a network that was never written returns an empty registry.
type RecordStore interface {
	Load(ctx context.Context, network string) (models.Registry, error)
	Append(ctx context.Context, network, contractType string, record models.DeploymentRecord) error
}

// ArtifactRepository provides access to compiled contracts
type ArtifactRepository interface {
	GetArtifact(ctx context.Context, name string) (*models.Artifact, error)
}

// CallEncoder ABI-encodes named arguments
type CallEncoder interface {
	EncodeConstructor(contractABI *abi.ABI, args models.Args) ([]byte, error)
	EncodeCall(contractABI *abi.ABI, method string, args models.Args) ([]byte, error)
}

// NetworkResolver resolves network names to their configuration
type NetworkResolver interface {
	ResolveNetwork(ctx context.Context, name string) (*config.Network, error)
}

// ReleaseMetrics records pipeline outcomes
type ReleaseMetrics interface {
	ObserveRun(network, contractType, outcome string)
	ObserveWarning(network, stage string)
	Flush() error
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// NopMetrics discards all observations
type NopMetrics struct{}

func (NopMetrics) ObserveRun(string, string, string) {}
func (NopMetrics) ObserveWarning(string, string)     {}
func (NopMetrics) Flush() error                      { return nil }
