package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/trebuchet-org/treb-release/internal/adapters/fs"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// ChainIDFetcher asks an RPC endpoint for its chain ID
type ChainIDFetcher func(ctx context.Context, rpcURL string) (uint64, error)

// FetchChainID queries eth_chainId through ethclient
func FetchChainID(ctx context.Context, rpcURL string) (uint64, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return chainID.Uint64(), nil
}

// NetworkCache caches chain ID lookups
type NetworkCache struct {
	Networks  map[string]uint64 `json:"networks"` // name -> chainID
	RPCs      map[string]uint64 `json:"rpcs"`     // rpcURL -> chainID
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NetworkResolver resolves network names from foundry.toml [rpc_endpoints]
// and [etherscan], caching chain IDs under the data directory
type NetworkResolver struct {
	foundry   *config.FoundryConfig
	cachePath string
	fetch     ChainIDFetcher
	writer    *fs.FileWriter
	log       *slog.Logger

	mu    sync.Mutex
	cache *NetworkCache
}

// NewNetworkResolver creates a new network resolver. An empty cachePath
// disables the on-disk cache.
func NewNetworkResolver(foundry *config.FoundryConfig, cachePath string, fetch ChainIDFetcher, writer *fs.FileWriter, log *slog.Logger) *NetworkResolver {
	r := &NetworkResolver{
		foundry:   foundry,
		cachePath: cachePath,
		fetch:     fetch,
		writer:    writer,
		log:       log.With("component", "NetworkResolver"),
	}
	r.loadCache()
	return r
}

// NewNetworkResolverFromConfig caches chain IDs in <data dir>/chainIds.json
func NewNetworkResolverFromConfig(cfg *config.RuntimeConfig, writer *fs.FileWriter, log *slog.Logger) *NetworkResolver {
	return NewNetworkResolver(cfg.FoundryConfig, filepath.Join(cfg.DataDir, "chainIds.json"), FetchChainID, writer, log)
}

// ResolveNetwork resolves a network name to its configuration
func (r *NetworkResolver) ResolveNetwork(ctx context.Context, name string) (*config.Network, error) {
	if r.foundry == nil {
		return nil, fmt.Errorf("no foundry.toml loaded, cannot resolve network '%s'", name)
	}
	rpcURL, exists := r.foundry.RpcEndpoints[name]
	if !exists {
		return nil, fmt.Errorf("network '%s' not found in foundry.toml [rpc_endpoints] (known: %v)", name, r.Networks())
	}
	rpcURL = os.ExpandEnv(rpcURL)

	chainID, err := r.chainID(ctx, name, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain ID for network %s: %w", name, err)
	}

	network := &config.Network{
		Name:       name,
		ChainID:    chainID,
		RPCURL:     rpcURL,
		BrowserURL: BrowserURL(chainID),
	}
	if etherscan, ok := r.foundry.Etherscan[name]; ok {
		network.ExplorerURL = os.ExpandEnv(etherscan.URL)
		network.ExplorerAPIKey = os.ExpandEnv(etherscan.Key)
	}
	return network, nil
}

// Networks returns all configured network names, sorted
func (r *NetworkResolver) Networks() []string {
	if r.foundry == nil {
		return nil
	}
	names := make([]string, 0, len(r.foundry.RpcEndpoints))
	for name := range r.foundry.RpcEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *NetworkResolver) chainID(ctx context.Context, name, rpcURL string) (uint64, error) {
	r.mu.Lock()
	if id, ok := r.cache.Networks[name]; ok && r.cache.RPCs[rpcURL] == id {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	id, err := r.fetch(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	r.updateCache(name, rpcURL, id)
	return id, nil
}

// BrowserURL returns a well-known block explorer for a chain, or ""
func BrowserURL(chainID uint64) string {
	switch chainID {
	case 1:
		return "https://etherscan.io"
	case 5:
		return "https://goerli.etherscan.io"
	case 11155111:
		return "https://sepolia.etherscan.io"
	case 10:
		return "https://optimistic.etherscan.io"
	case 56:
		return "https://bscscan.com"
	case 97:
		return "https://testnet.bscscan.com"
	case 137:
		return "https://polygonscan.com"
	case 250:
		return "https://ftmscan.com"
	case 8453:
		return "https://basescan.org"
	case 42161:
		return "https://arbiscan.io"
	case 43114:
		return "https://snowtrace.io"
	case 42220:
		return "https://celoscan.io"
	default:
		return ""
	}
}

func newCache() *NetworkCache {
	return &NetworkCache{
		Networks:  make(map[string]uint64),
		RPCs:      make(map[string]uint64),
		UpdatedAt: time.Now(),
	}
}

// loadCache loads the chain ID cache from disk
func (r *NetworkResolver) loadCache() {
	r.cache = newCache()
	if r.cachePath == "" {
		return
	}

	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		// Cache doesn't exist yet, that's fine
		return
	}
	var loaded NetworkCache
	if err := json.Unmarshal(data, &loaded); err != nil || loaded.Networks == nil || loaded.RPCs == nil {
		r.log.Debug("ignoring invalid chain ID cache", "path", r.cachePath)
		return
	}
	r.cache = &loaded
}

// updateCache records a lookup; write failures only cost a future RPC call
func (r *NetworkResolver) updateCache(name, rpcURL string, chainID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Networks[name] = chainID
	r.cache.RPCs[rpcURL] = chainID
	r.cache.UpdatedAt = time.Now()

	if r.cachePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0755); err != nil {
		r.log.Debug("failed to create cache dir", "error", err)
		return
	}
	if err := r.writer.WriteJSON(r.cachePath, r.cache); err != nil {
		r.log.Debug("failed to save chain ID cache", "error", err)
	}
}

// Ensure the resolver implements the interface
var _ usecase.NetworkResolver = (*NetworkResolver)(nil)
