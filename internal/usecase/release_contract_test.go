package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bytecode"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

const tribeBytecode = "0x6080604052a101020003"

var (
	adminArg     = "0x822D71E46806081FA348aAB60A7b824B91e57825"
	implBBB      = common.HexToAddress("0x0000000000000000000000000000000000000bbb")
	proxyCCC     = common.HexToAddress("0x0000000000000000000000000000000000000ccc")
	simpleDDD    = common.HexToAddress("0x0000000000000000000000000000000000000ddd")
	fixedNow     = time.Date(2021, 7, 1, 10, 0, 0, 123456789, time.UTC)
	bscNetwork   = &config.Network{Name: "bsc", ChainID: 56, ExplorerURL: "https://api.bscscan.com/api", ExplorerAPIKey: "key"}
	deployTxHash = common.HexToHash("0x01")
)

// Fakes

type fakeNetworks struct {
	network *config.Network
}

func (f *fakeNetworks) ResolveNetwork(_ context.Context, name string) (*config.Network, error) {
	if f.network == nil || f.network.Name != name {
		return nil, fmt.Errorf("network %s: %w", name, domain.ErrNotFound)
	}
	return f.network, nil
}

type fakeArtifacts struct {
	artifact *models.Artifact
}

func (f *fakeArtifacts) GetArtifact(_ context.Context, name string) (*models.Artifact, error) {
	if f.artifact == nil || f.artifact.Name != name {
		return nil, fmt.Errorf("artifact %s: %w", name, domain.ErrNotFound)
	}
	return f.artifact, nil
}

type chainCall struct {
	to       common.Address
	calldata []byte
}

type fakeChain struct {
	deployAddr  common.Address
	deploys     [][]byte // ctor args per deploy
	calls       []chainCall
	callErr     error
	confirmErr  error
	confirmWith int
	confirmCtx  context.Context
}

func (f *fakeChain) Connect(context.Context, *config.Network) error { return nil }
func (f *fakeChain) Sender() common.Address                         { return common.HexToAddress("0x1") }

func (f *fakeChain) Deploy(_ context.Context, _ []byte, ctorArgs []byte) (common.Address, *models.TxHandle, error) {
	f.deploys = append(f.deploys, ctorArgs)
	addr := f.deployAddr
	return addr, &models.TxHandle{Hash: deployTxHash, BlockNumber: 10, ContractAddress: &addr}, nil
}

func (f *fakeChain) Call(_ context.Context, to common.Address, calldata []byte) (*models.TxHandle, error) {
	f.calls = append(f.calls, chainCall{to: to, calldata: calldata})
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &models.TxHandle{Hash: common.HexToHash("0x02"), BlockNumber: 11}, nil
}

func (f *fakeChain) WaitForConfirmations(ctx context.Context, _ *models.TxHandle, n int) error {
	f.confirmWith = n
	f.confirmCtx = ctx
	return f.confirmErr
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeConstructor(_ *abi.ABI, args models.Args) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return []byte("ctor"), nil
}

func (fakeEncoder) EncodeCall(_ *abi.ABI, method string, _ models.Args) ([]byte, error) {
	if method == "missing" {
		return nil, fmt.Errorf("method %s not found", method)
	}
	return []byte("call:" + method), nil
}

// fakeProxyDeployer registers the logic in a shared manifest the way the
// upgrades tooling does
type fakeProxyDeployer struct {
	manifest *models.UpgradeManifest
	register bool
	calls    int
	initData [][]byte
	err      error
}

func (f *fakeProxyDeployer) DeployProxy(_ context.Context, _ *config.Network, logic *models.Artifact, initData []byte) (*ProxyDeployment, error) {
	f.calls++
	f.initData = append(f.initData, initData)
	if f.err != nil {
		return nil, f.err
	}
	fp, err := bytecode.FingerprintHex(logic.Bytecode)
	if err != nil {
		return nil, err
	}
	reused := false
	if _, ok := f.manifest.Implementation(fp); ok {
		reused = true
	} else if f.register {
		f.manifest.Impls[fp] = models.ManifestImplementation{Address: implBBB.Hex()}
	}
	proxy := proxyCCC
	return &ProxyDeployment{
		Proxy:                proxy,
		Implementation:       implBBB,
		ImplementationReused: reused,
		ProxyTx:              &models.TxHandle{Hash: deployTxHash, BlockNumber: 10, ContractAddress: &proxy},
	}, nil
}

type memStore struct {
	registries map[string]models.Registry
	loadErr    error
	appendErr  error
	onAppend   func()
}

func newMemStore() *memStore {
	return &memStore{registries: map[string]models.Registry{}}
}

func (s *memStore) Load(_ context.Context, network string) (models.Registry, error) {
	if s.loadErr != nil {
		return nil, &domain.StoreIOError{Network: network, Op: "load", Err: s.loadErr}
	}
	if reg, ok := s.registries[network]; ok {
		return reg, nil
	}
	return models.NewRegistry(), nil
}

func (s *memStore) Append(ctx context.Context, network, contractType string, record models.DeploymentRecord) error {
	if s.appendErr != nil {
		return &domain.StoreIOError{Network: network, Op: "append", Err: s.appendErr}
	}
	reg, _ := s.Load(ctx, network)
	s.registries[network] = reg.WithRecord(contractType, record)
	if s.onAppend != nil {
		s.onAppend()
	}
	return nil
}

type fakeVerifier struct {
	requests []models.VerificationRequest
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, req models.VerificationRequest) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	return ctx.Err()
}

type recordingMetrics struct {
	runs     []string
	warnings []string
	flushes  int
}

func (m *recordingMetrics) ObserveRun(network, contractType, outcome string) {
	m.runs = append(m.runs, network+"/"+contractType+"/"+outcome)
}
func (m *recordingMetrics) ObserveWarning(network, stage string) {
	m.warnings = append(m.warnings, network+"/"+stage)
}
func (m *recordingMetrics) Flush() error { m.flushes++; return nil }

type releaseFixture struct {
	chain    *fakeChain
	proxies  *fakeProxyDeployer
	store    *memStore
	verifier *fakeVerifier
	metrics  *recordingMetrics
	uc       *ReleaseContract
}

func newReleaseFixture() *releaseFixture {
	manifest := models.NewUpgradeManifest()
	f := &releaseFixture{
		chain:    &fakeChain{deployAddr: simpleDDD},
		proxies:  &fakeProxyDeployer{manifest: manifest, register: true},
		store:    newMemStore(),
		verifier: &fakeVerifier{},
		metrics:  &recordingMetrics{},
	}
	manifests := &mockManifestReader{
		readFunc: func(context.Context, *config.Network) (*models.UpgradeManifest, error) {
			return manifest, nil
		},
	}
	artifact := &models.Artifact{
		Name:       "TribeStaking",
		SourcePath: "contracts/TribeStaking.sol",
		Bytecode:   tribeBytecode,
	}

	f.uc = NewReleaseContract(
		&fakeNetworks{network: bscNetwork},
		&fakeArtifacts{artifact: artifact},
		f.chain,
		fakeEncoder{},
		f.proxies,
		NewResolveImplementation(manifests),
		f.store,
		f.verifier,
		f.metrics,
		NopProgress{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	f.uc.now = func() time.Time { return fixedNow }
	f.uc.newRunID = func() string { return "run-1" }
	return f
}

func tribeParams() ReleaseParams {
	return ReleaseParams{
		ContractType: "tribe",
		Artifact:     "TribeStaking",
		Network:      "bsc",
		Tag:          "tribe-prod",
		Args:         models.Args{"_admin": adminArg},
		Upgradable:   true,
		Initializer:  "initialize",
	}
}

func TestReleaseContract_Upgradable(t *testing.T) {
	f := newReleaseFixture()
	fingerprint, err := bytecode.FingerprintHex(tribeBytecode)
	require.NoError(t, err)

	result, err := f.uc.Run(context.Background(), tribeParams())
	require.NoError(t, err)

	t.Run("record", func(t *testing.T) {
		rec := result.Record
		assert.Equal(t, "tribe-prod", rec.Tag)
		assert.Equal(t, proxyCCC, rec.Address)
		assert.Equal(t, fingerprint, rec.Version)
		assert.Equal(t, models.Args{"_admin": adminArg}, rec.Args)
		assert.Equal(t, fixedNow.Truncate(time.Millisecond), rec.Date)

		impl, ok := rec.Deployment.Implementation()
		require.True(t, ok)
		assert.Equal(t, implBBB, impl)
	})

	t.Run("persisted under contract type", func(t *testing.T) {
		records := f.store.registries["bsc"].Records("tribe")
		require.Len(t, records, 1)
		assert.Equal(t, result.Record, records[0])
	})

	t.Run("initializer runs in proxy constructor", func(t *testing.T) {
		assert.Equal(t, [][]byte{[]byte("call:initialize")}, f.proxies.initData)
		assert.Empty(t, f.chain.calls, "no separate initialize transaction")
	})

	t.Run("confirmed with default count", func(t *testing.T) {
		assert.True(t, result.Confirmed)
		assert.Equal(t, 5, f.chain.confirmWith)
	})

	t.Run("verifies implementation without constructor args", func(t *testing.T) {
		require.Len(t, f.verifier.requests, 1)
		req := f.verifier.requests[0]
		assert.Equal(t, implBBB, req.Address)
		assert.Empty(t, req.ConstructorArgs)
		assert.Equal(t, uint64(56), req.ChainID)
		assert.True(t, result.Verification.Attempted)
		assert.True(t, result.Verification.Verified)
		assert.Nil(t, result.Verification.Warning)
	})

	t.Run("no warnings on first run", func(t *testing.T) {
		assert.Equal(t, 0, result.DuplicateTags)
		assert.Empty(t, result.Warnings)
		assert.Equal(t, []string{"bsc/tribe/success"}, f.metrics.runs)
	})

	t.Run("second run reports duplicate tag", func(t *testing.T) {
		second, err := f.uc.Run(context.Background(), tribeParams())
		require.NoError(t, err)

		assert.Equal(t, 1, second.DuplicateTags)
		assert.True(t, second.ImplementationReused)
		require.Len(t, second.Warnings, 1)
		assert.Equal(t, StageTagCheck, second.Warnings[0].Stage)
		assert.Len(t, f.store.registries["bsc"].Records("tribe"), 2)
		assert.Equal(t, []string{"bsc/tag-check"}, f.metrics.warnings)
	})
}

func TestReleaseContract_Simple(t *testing.T) {
	t.Run("constructor args", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.Upgradable = false
		params.Initializer = ""

		result, err := f.uc.Run(context.Background(), params)
		require.NoError(t, err)

		assert.Equal(t, simpleDDD, result.Record.Address)
		assert.False(t, result.Record.Deployment.IsUpgradable())
		assert.Equal(t, [][]byte{[]byte("ctor")}, f.chain.deploys)
		assert.Empty(t, f.chain.calls)
		assert.Equal(t, 0, f.proxies.calls)

		require.Len(t, f.verifier.requests, 1)
		assert.Equal(t, simpleDDD, f.verifier.requests[0].Address)
		assert.Equal(t, []byte("ctor"), f.verifier.requests[0].ConstructorArgs)
	})

	t.Run("initializer replaces constructor args", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.Upgradable = false

		_, err := f.uc.Run(context.Background(), params)
		require.NoError(t, err)

		assert.Equal(t, [][]byte{nil}, f.chain.deploys)
		require.Len(t, f.chain.calls, 1)
		assert.Equal(t, simpleDDD, f.chain.calls[0].to)
	})

	t.Run("empty tag checks untagged", func(t *testing.T) {
		f := newReleaseFixture()
		f.store.registries["bsc"] = models.NewRegistry().
			WithRecord("tribe", models.DeploymentRecord{Tag: "Untagged"}).
			WithRecord("tribe", models.DeploymentRecord{})
		params := tribeParams()
		params.Upgradable = false
		params.Tag = ""

		result, err := f.uc.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, 1, result.DuplicateTags)
		assert.Equal(t, "", result.Record.Tag)
	})
}

func TestReleaseContract_Failures(t *testing.T) {
	t.Run("initializer failure", func(t *testing.T) {
		f := newReleaseFixture()
		f.chain.callErr = errors.New("execution reverted")
		params := tribeParams()
		params.Upgradable = false

		result, err := f.uc.Run(context.Background(), params)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrInitialization))

		var relErr *domain.ReleaseError
		require.True(t, errors.As(err, &relErr))
		assert.Equal(t, StageInitialize, relErr.Stage)
		require.NotNil(t, relErr.Address)
		assert.Equal(t, simpleDDD, *relErr.Address)

		var initErr *domain.InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, simpleDDD, initErr.Address)

		assert.Empty(t, f.store.registries)
		assert.Equal(t, []string{"bsc/tribe/failed"}, f.metrics.runs)
	})

	t.Run("proxy constructor revert is an initialization failure", func(t *testing.T) {
		f := newReleaseFixture()
		f.proxies.err = fmt.Errorf("failed to deploy proxy: %w: %w", domain.ErrProxyConstructor, errors.New("execution reverted"))

		_, err := f.uc.Run(context.Background(), tribeParams())
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInitialization))

		var relErr *domain.ReleaseError
		require.True(t, errors.As(err, &relErr))
		assert.Equal(t, StageInitialize, relErr.Stage)
		assert.Nil(t, relErr.Address, "no proxy exists")

		var initErr *domain.InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, "initialize", initErr.Method)
		assert.Equal(t, common.Address{}, initErr.Address)
		assert.Contains(t, initErr.Error(), "was not deployed")

		assert.Empty(t, f.chain.calls)
		assert.Empty(t, f.store.registries)
	})

	t.Run("proxy failure without initializer is a deploy failure", func(t *testing.T) {
		f := newReleaseFixture()
		f.proxies.err = fmt.Errorf("failed to deploy proxy: %w: %w", domain.ErrProxyConstructor, errors.New("out of gas"))
		params := tribeParams()
		params.Initializer = ""

		_, err := f.uc.Run(context.Background(), params)
		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrInitialization))

		var relErr *domain.ReleaseError
		require.True(t, errors.As(err, &relErr))
		assert.Equal(t, StageDeploy, relErr.Stage)
	})

	t.Run("missing required params", func(t *testing.T) {
		f := newReleaseFixture()
		for name, mutate := range map[string]func(*ReleaseParams){
			"contract type": func(p *ReleaseParams) { p.ContractType = "" },
			"network":       func(p *ReleaseParams) { p.Network = "" },
		} {
			t.Run(name, func(t *testing.T) {
				params := tribeParams()
				mutate(&params)

				_, err := f.uc.Run(context.Background(), params)
				require.Error(t, err)

				var relErr *domain.ReleaseError
				require.True(t, errors.As(err, &relErr))
				assert.Equal(t, StageConnect, relErr.Stage)
				assert.Nil(t, relErr.Address)
				assert.Contains(t, err.Error(), name+" is required")
			})
		}
		assert.Equal(t, 0, f.proxies.calls)
	})

	t.Run("unencodable initializer sends nothing", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.Initializer = "missing"

		_, err := f.uc.Run(context.Background(), params)
		require.Error(t, err)
		assert.Equal(t, 0, f.proxies.calls)
		assert.Empty(t, f.chain.deploys)
	})

	t.Run("resolution failure aborts before persisting", func(t *testing.T) {
		f := newReleaseFixture()
		f.proxies.register = false

		_, err := f.uc.Run(context.Background(), tribeParams())
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrManifestResolution))

		var relErr *domain.ReleaseError
		require.True(t, errors.As(err, &relErr))
		assert.Equal(t, StageResolve, relErr.Stage)
		assert.NotEmpty(t, relErr.Fingerprint)

		assert.Empty(t, f.store.registries)
		assert.Nil(t, f.chain.confirmCtx)
		assert.Empty(t, f.verifier.requests)
	})

	t.Run("registry load failure is fatal", func(t *testing.T) {
		f := newReleaseFixture()
		f.store.loadErr = errors.New("permission denied")

		_, err := f.uc.Run(context.Background(), tribeParams())
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStoreIO))
	})

	t.Run("registry append failure is fatal", func(t *testing.T) {
		f := newReleaseFixture()
		f.store.appendErr = errors.New("disk full")

		_, err := f.uc.Run(context.Background(), tribeParams())
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStoreIO))
		assert.Nil(t, f.chain.confirmCtx)
	})

	t.Run("unknown network", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.Network = "mainnet"

		_, err := f.uc.Run(context.Background(), params)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Equal(t, 0, f.proxies.calls)
	})
}

func TestReleaseContract_Warnings(t *testing.T) {
	t.Run("verification failure", func(t *testing.T) {
		f := newReleaseFixture()
		f.verifier.err = errors.New("explorer unavailable")

		result, err := f.uc.Run(context.Background(), tribeParams())
		require.NoError(t, err)

		assert.True(t, result.Verification.Attempted)
		assert.False(t, result.Verification.Verified)
		require.NotNil(t, result.Verification.Warning)
		assert.True(t, errors.Is(result.Verification.Warning.Err, domain.ErrVerification))
		assert.Len(t, f.store.registries["bsc"].Records("tribe"), 1)
	})

	t.Run("confirmation failure", func(t *testing.T) {
		f := newReleaseFixture()
		f.chain.confirmErr = errors.New("rpc timeout")

		result, err := f.uc.Run(context.Background(), tribeParams())
		require.NoError(t, err)

		assert.False(t, result.Confirmed)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, StageConfirm, result.Warnings[0].Stage)
		assert.Len(t, f.store.registries["bsc"].Records("tribe"), 1)
	})

	t.Run("confirmation ignores caller cancellation", func(t *testing.T) {
		f := newReleaseFixture()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.store.onAppend = cancel

		result, err := f.uc.Run(ctx, tribeParams())
		require.NoError(t, err)

		require.NotNil(t, f.chain.confirmCtx)
		assert.NoError(t, f.chain.confirmCtx.Err())
		assert.True(t, result.Confirmed)
	})

	t.Run("custom confirmations", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.Confirmations = 12

		result, err := f.uc.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, 12, f.chain.confirmWith)
		assert.Equal(t, 12, result.Confirmations)
	})

	t.Run("upgradable args without initializer", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.Initializer = ""

		result, err := f.uc.Run(context.Background(), params)
		require.NoError(t, err)

		require.Len(t, result.Warnings, 1)
		assert.Equal(t, StageDeploy, result.Warnings[0].Stage)
		assert.Contains(t, result.Warnings[0].Message, "not sent")
		assert.Equal(t, models.Args{"_admin": adminArg}, result.Record.Args)
		assert.Equal(t, [][]byte{nil}, f.proxies.initData)
		assert.Equal(t, []string{"bsc/deploy"}, f.metrics.warnings)
	})

	t.Run("upgradable without args or initializer", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.Initializer = ""
		params.Args = nil

		result, err := f.uc.Run(context.Background(), params)
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)
	})

	t.Run("verification skipped", func(t *testing.T) {
		f := newReleaseFixture()
		params := tribeParams()
		params.SkipVerify = true

		result, err := f.uc.Run(context.Background(), params)
		require.NoError(t, err)
		assert.False(t, result.Verification.Attempted)
		assert.NotEmpty(t, result.Verification.SkipReason)
		assert.Empty(t, f.verifier.requests)
	})
}
