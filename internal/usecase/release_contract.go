package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bytecode"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// Pipeline stages, used in errors, warnings, progress events and metrics
const (
	StageConnect     = "connect"
	StageArtifact    = "artifact"
	StageDeploy      = "deploy"
	StageInitialize  = "initialize"
	StageFingerprint = "fingerprint"
	StageResolve     = "resolve"
	StageTagCheck    = "tag-check"
	StagePersist     = "persist"
	StageConfirm     = "confirm"
	StageVerify      = "verify"
	StageDone        = "done"
)

// LocalChainID is the anvil/hardhat chain id; nothing there can be verified
const LocalChainID = 31337

// ReleaseParams contains parameters for a release run
type ReleaseParams struct {
	ContractType  string // registry key, e.g. "tribe"
	Artifact      string // compiled contract name, defaults to ContractType
	Network       string
	Tag           string
	Args          models.Args
	Confirmations int // <= 0 means config.DefaultConfirmations
	Upgradable    bool
	Initializer   string
	SkipVerify    bool
}

// Warning is a non-fatal problem reported by a successful run
type Warning struct {
	Stage   string
	Message string
	Err     error
}

// VerificationOutcome reports what happened to source verification
type VerificationOutcome struct {
	Attempted  bool
	Verified   bool
	Address    common.Address
	SkipReason string
	Warning    *Warning
}

// ReleaseResult contains the result of a successful release
type ReleaseResult struct {
	RunID                string
	Network              *config.Network
	ContractType         string
	Record               models.DeploymentRecord
	Transaction          *models.TxHandle
	ImplementationReused bool
	DuplicateTags        int
	Confirmations        int
	Confirmed            bool
	Verification         VerificationOutcome
	Warnings             []Warning
}

// ReleaseContract deploys a contract instance and durably records it:
// deploy, initialize, fingerprint, resolve implementation, persist,
// confirm, verify
type ReleaseContract struct {
	networks  NetworkResolver
	artifacts ArtifactRepository
	chain     ChainClient
	encoder   CallEncoder
	proxies   ProxyDeployer
	resolver  *ResolveImplementation
	store     RecordStore
	verifier  ContractVerifier
	metrics   ReleaseMetrics
	progress  ProgressSink
	log       *slog.Logger

	now      func() time.Time
	newRunID func() string
}

// NewReleaseContract creates a new release use case
func NewReleaseContract(
	networks NetworkResolver,
	artifacts ArtifactRepository,
	chain ChainClient,
	encoder CallEncoder,
	proxies ProxyDeployer,
	resolver *ResolveImplementation,
	store RecordStore,
	verifier ContractVerifier,
	metrics ReleaseMetrics,
	progress ProgressSink,
	log *slog.Logger,
) *ReleaseContract {
	return &ReleaseContract{
		networks:  networks,
		artifacts: artifacts,
		chain:     chain,
		encoder:   encoder,
		proxies:   proxies,
		resolver:  resolver,
		store:     store,
		verifier:  verifier,
		metrics:   metrics,
		progress:  progress,
		log:       log.With("component", "ReleaseContract"),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// deployed is the outcome of the deploy stage
type deployed struct {
	address        common.Address
	tx             *models.TxHandle
	implementation common.Address // upgradable only
	reused         bool
	ctorArgs       []byte
}

// Run executes the release pipeline. Any error returned is a
// *domain.ReleaseError and means no record was written.
func (uc *ReleaseContract) Run(ctx context.Context, params ReleaseParams) (_ *ReleaseResult, err error) {
	if params.ContractType == "" || params.Network == "" {
		missing := "contract type"
		if params.ContractType != "" {
			missing = "network"
		}
		return nil, &domain.ReleaseError{
			Stage:        StageConnect,
			Network:      params.Network,
			ContractType: params.ContractType,
			Err:          fmt.Errorf("%s is required", missing),
		}
	}
	artifactName := params.Artifact
	if artifactName == "" {
		artifactName = params.ContractType
	}
	confirmations := params.Confirmations
	if confirmations <= 0 {
		confirmations = config.DefaultConfirmations
	}

	result := &ReleaseResult{
		RunID:         uc.newRunID(),
		ContractType:  params.ContractType,
		Confirmations: confirmations,
	}
	log := uc.log.With("run_id", result.RunID, "network", params.Network, "contract", params.ContractType)

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failed"
		}
		uc.metrics.ObserveRun(params.Network, params.ContractType, outcome)
		if ferr := uc.metrics.Flush(); ferr != nil {
			log.Warn("failed to write metrics", "error", ferr)
		}
	}()

	fail := func(stage, fingerprint string, addr *common.Address, cause error) (*ReleaseResult, error) {
		log.Error("release failed", "stage", stage, "error", cause)
		uc.progress.Error(fmt.Sprintf("%s failed: %v", stage, cause))
		return nil, &domain.ReleaseError{
			Stage:        stage,
			Network:      params.Network,
			ContractType: params.ContractType,
			Fingerprint:  fingerprint,
			Address:      addr,
			Err:          cause,
		}
	}

	// Connect
	network, err := uc.networks.ResolveNetwork(ctx, params.Network)
	if err != nil {
		return fail(StageConnect, "", nil, err)
	}
	result.Network = network
	if err := uc.chain.Connect(ctx, network); err != nil {
		return fail(StageConnect, "", nil, err)
	}
	log.Debug("deploying", "chain_id", network.ChainID, "deployer", uc.chain.Sender().Hex())

	artifact, err := uc.artifacts.GetArtifact(ctx, artifactName)
	if err != nil {
		return fail(StageArtifact, "", nil, err)
	}
	code, err := bytecode.Decode(artifact.Bytecode)
	if err != nil {
		return fail(StageArtifact, "", nil, err)
	}

	// Encode the initializer before anything is sent so a bad argument
	// cannot leave an uninitialized instance behind
	var initCalldata []byte
	if params.Initializer != "" {
		initCalldata, err = uc.encoder.EncodeCall(&artifact.ABI, params.Initializer, params.Args)
		if err != nil {
			return fail(StageDeploy, "", nil, fmt.Errorf("failed to encode %s(): %w", params.Initializer, err))
		}
	}

	if params.Upgradable && initCalldata == nil && len(params.Args) > 0 {
		uc.warn(ctx, result, log, Warning{
			Stage:   StageDeploy,
			Message: "Arguments are recorded but not sent: an upgradable deployment without an initializer takes none",
		})
	}

	// 1. Deploy
	uc.stage(ctx, StageDeploy, fmt.Sprintf("Deploying %s to %s", artifact.Name, network.Name))
	var dep *deployed
	if params.Upgradable {
		dep, err = uc.deployUpgradable(ctx, network, artifact, initCalldata)
	} else {
		dep, err = uc.deploySimple(ctx, artifact, code, params)
	}
	if err != nil {
		if initCalldata != nil && errors.Is(err, domain.ErrProxyConstructor) {
			return fail(StageInitialize, "", nil, &domain.InitializationError{
				Network:      network.Name,
				ContractType: params.ContractType,
				Method:       params.Initializer,
				Err:          err,
			})
		}
		return fail(StageDeploy, "", nil, err)
	}
	result.Transaction = dep.tx
	result.ImplementationReused = dep.reused
	log.Debug("deployed contract", "address", dep.address.Hex(), "tx", dep.tx.Hash.Hex())

	// An upgradable instance was initialized by its proxy constructor
	if initCalldata != nil && !params.Upgradable {
		uc.stage(ctx, StageInitialize, fmt.Sprintf("Calling %s()", params.Initializer))
		if _, err := uc.chain.Call(ctx, dep.address, initCalldata); err != nil {
			addr := dep.address
			return fail(StageInitialize, "", &addr, &domain.InitializationError{
				Network:      network.Name,
				ContractType: params.ContractType,
				Address:      dep.address,
				Method:       params.Initializer,
				Err:          err,
			})
		}
	}

	// 2. Fingerprint
	fingerprint, err := bytecode.Fingerprint(code)
	if err != nil {
		addr := dep.address
		return fail(StageFingerprint, "", &addr, err)
	}
	log.Debug("implementation version", "version", fingerprint)

	// 3. Resolve
	kind := models.Simple()
	if params.Upgradable {
		uc.stage(ctx, StageResolve, "Resolving implementation")
		impl, err := uc.resolver.Resolve(ctx, network, fingerprint)
		if err != nil {
			addr := dep.address
			return fail(StageResolve, fingerprint, &addr, err)
		}
		if impl != dep.implementation {
			msg := fmt.Sprintf("manifest implementation %s differs from deployed logic %s",
				impl.Hex(), dep.implementation.Hex())
			uc.warn(ctx, result, log, Warning{Stage: StageResolve, Message: msg})
		}
		kind = models.Upgradable(impl)
	}

	// 4. Build
	record := models.DeploymentRecord{
		Tag:        params.Tag,
		Address:    dep.address,
		Version:    fingerprint,
		Date:       uc.now().UTC().Truncate(time.Millisecond),
		Args:       params.Args,
		Deployment: kind,
	}
	if record.Args == nil {
		record.Args = models.Args{}
	}

	// 5. Tag check
	registry, err := uc.store.Load(ctx, network.Name)
	if err != nil {
		addr := dep.address
		return fail(StagePersist, fingerprint, &addr, err)
	}
	tag := params.Tag
	if tag == "" {
		tag = models.UntaggedLabel
	}
	result.DuplicateTags = models.CountTagMatches(tag, registry.Records(params.ContractType))
	if result.DuplicateTags > 0 {
		uc.warn(ctx, result, log, Warning{
			Stage:   StageTagCheck,
			Message: fmt.Sprintf("There are %d deployments with the same tag of %s", result.DuplicateTags, tag),
		})
	}

	// 6. Persist
	uc.stage(ctx, StagePersist, fmt.Sprintf("Registering %s with tag '%s'", params.ContractType, tag))
	if err := uc.store.Append(ctx, network.Name, params.ContractType, record); err != nil {
		addr := dep.address
		return fail(StagePersist, fingerprint, &addr, err)
	}
	result.Record = record
	log.Info("registered deployment", "address", record.Address.Hex(), "version", fingerprint, "tag", tag)

	// 7. Confirm
	uc.stage(ctx, StageConfirm, fmt.Sprintf("Waiting for %d confirmations", confirmations))
	if err := uc.chain.WaitForConfirmations(context.WithoutCancel(ctx), dep.tx, confirmations); err != nil {
		uc.warn(ctx, result, log, Warning{
			Stage:   StageConfirm,
			Message: fmt.Sprintf("failed waiting for %d confirmations", confirmations),
			Err:     err,
		})
	} else {
		result.Confirmed = true
	}

	// 8. Verify
	target := dep.address
	if impl, ok := kind.Implementation(); ok {
		target = impl
	}
	result.Verification = uc.verify(ctx, result, log, network, artifact, target, dep.ctorArgs, params.SkipVerify)

	uc.progress.OnProgress(ctx, ProgressEvent{Stage: StageDone, Message: fmt.Sprintf("Released %s at %s", params.ContractType, dep.address.Hex())})
	return result, nil
}

func (uc *ReleaseContract) deploySimple(ctx context.Context, artifact *models.Artifact, code []byte, params ReleaseParams) (*deployed, error) {
	var ctorArgs []byte
	if params.Initializer == "" {
		var err error
		ctorArgs, err = uc.encoder.EncodeConstructor(&artifact.ABI, params.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
		}
	}

	addr, tx, err := uc.chain.Deploy(ctx, code, ctorArgs)
	if err != nil {
		return nil, err
	}
	return &deployed{address: addr, tx: tx, ctorArgs: ctorArgs}, nil
}

func (uc *ReleaseContract) deployUpgradable(ctx context.Context, network *config.Network, artifact *models.Artifact, initCalldata []byte) (*deployed, error) {
	pd, err := uc.proxies.DeployProxy(ctx, network, artifact, initCalldata)
	if err != nil {
		return nil, err
	}
	return &deployed{
		address:        pd.Proxy,
		tx:             pd.ProxyTx,
		implementation: pd.Implementation,
		reused:         pd.ImplementationReused,
	}, nil
}

func (uc *ReleaseContract) verify(
	ctx context.Context,
	result *ReleaseResult,
	log *slog.Logger,
	network *config.Network,
	artifact *models.Artifact,
	target common.Address,
	ctorArgs []byte,
	skip bool,
) VerificationOutcome {
	outcome := VerificationOutcome{Address: target}

	switch {
	case skip:
		outcome.SkipReason = "verification disabled"
		return outcome
	case network.ChainID == LocalChainID:
		outcome.SkipReason = "local chain"
		return outcome
	}

	uc.stage(ctx, StageVerify, fmt.Sprintf("Verifying %s", target.Hex()))
	outcome.Attempted = true
	err := uc.verifier.Verify(ctx, models.VerificationRequest{
		Address:         target,
		Artifact:        artifact,
		ChainID:         network.ChainID,
		ConstructorArgs: ctorArgs,
		ExplorerURL:     network.ExplorerURL,
		APIKey:          network.ExplorerAPIKey,
	})
	if err != nil {
		w := Warning{
			Stage:   StageVerify,
			Message: "failed to verify contract",
			Err:     &domain.VerificationError{Address: target, Err: err},
		}
		uc.warn(ctx, result, log, w)
		outcome.Warning = &w
		return outcome
	}

	outcome.Verified = true
	log.Info("verified contract", "address", target.Hex())
	return outcome
}

func (uc *ReleaseContract) stage(ctx context.Context, stage, message string) {
	uc.progress.OnProgress(ctx, ProgressEvent{Stage: stage, Message: message, Spinner: true})
}

func (uc *ReleaseContract) warn(ctx context.Context, result *ReleaseResult, log *slog.Logger, w Warning) {
	result.Warnings = append(result.Warnings, w)
	if result.Network != nil {
		uc.metrics.ObserveWarning(result.Network.Name, w.Stage)
	}
	if w.Err != nil {
		log.WarnContext(ctx, w.Message, "stage", w.Stage, "error", w.Err)
	} else {
		log.WarnContext(ctx, w.Message, "stage", w.Stage)
	}
}
