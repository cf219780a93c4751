package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Backend is the subset of *ethclient.Client the client needs
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

// DialFunc connects to an RPC endpoint
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthclient dials an RPC endpoint with ethclient
func DialEthclient(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// gasMarginPercent is added on top of the node's gas estimate
const gasMarginPercent = 20

// Client signs and sends transactions with a single private key
type Client struct {
	key          *ecdsa.PrivateKey
	keyErr       error
	from         common.Address
	pollInterval time.Duration
	dial         DialFunc
	log          *slog.Logger

	backend Backend
	chainID *big.Int
}

// NewClient creates a client signing with key
func NewClient(key *ecdsa.PrivateKey, pollInterval time.Duration, dial DialFunc, log *slog.Logger) *Client {
	c := &Client{
		key:          key,
		pollInterval: pollInterval,
		dial:         dial,
		log:          log.With("component", "ChainClient"),
	}
	if key == nil {
		c.keyErr = errors.New("no sender private key configured ([sender] private_key in treb-release.toml)")
	} else {
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c
}

// NewClientFromConfig creates a client from the [sender] and
// [confirmations] sections. A missing or invalid key only fails once the
// client is connected, so commands that never send still work.
func NewClientFromConfig(cfg *config.RuntimeConfig, log *slog.Logger) *Client {
	key, keyErr := ParsePrivateKey(os.ExpandEnv(cfg.Release.Sender.PrivateKey))
	c := NewClient(key, cfg.Release.PollInterval(), DialEthclient, log)
	if keyErr != nil {
		c.keyErr = keyErr
	}
	return c
}

// ParsePrivateKey parses a hex private key with or without 0x. An empty
// string yields a nil key and no error.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid sender private key: %w", err)
	}
	return key, nil
}

// Connect establishes connection to the blockchain
func (c *Client) Connect(ctx context.Context, network *config.Network) error {
	if c.keyErr != nil {
		return c.keyErr
	}

	backend, err := c.dial(ctx, network.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}

	// Verify chain ID matches
	networkChainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if network.ChainID != 0 && networkChainID.Uint64() != network.ChainID {
		backend.Close()
		return fmt.Errorf("chain ID mismatch: expected %d, got %d", network.ChainID, networkChainID.Uint64())
	}

	c.backend = backend
	c.chainID = networkChainID
	c.log.Debug("connected", "network", network.Name, "chain_id", networkChainID.Uint64(), "sender", c.from.Hex())
	return nil
}

// Close releases the RPC connection
func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
		c.backend = nil
	}
}

// Sender returns the signing account
func (c *Client) Sender() common.Address {
	return c.from
}

// Deploy sends a contract creation and waits for it to be mined
func (c *Client) Deploy(ctx context.Context, bytecode []byte, ctorArgs []byte) (common.Address, *models.TxHandle, error) {
	data := make([]byte, 0, len(bytecode)+len(ctorArgs))
	data = append(data, bytecode...)
	data = append(data, ctorArgs...)

	tx, err := c.send(ctx, nil, data)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to send deployment: %w", err)
	}

	receipt, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		return common.Address{}, nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, nil, fmt.Errorf("deployment transaction %s reverted", tx.Hash().Hex())
	}

	addr := receipt.ContractAddress
	if addr == (common.Address{}) {
		addr = crypto.CreateAddress(c.from, tx.Nonce())
	}

	code, err := c.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to check code: %w", err)
	}
	if len(code) == 0 {
		return common.Address{}, nil, fmt.Errorf("no code at deployed address %s", addr.Hex())
	}

	handle := c.handle(tx, receipt)
	handle.ContractAddress = &addr
	return addr, handle, nil
}

// Call sends a transaction to an existing contract and waits for it to be mined
func (c *Client) Call(ctx context.Context, to common.Address, calldata []byte) (*models.TxHandle, error) {
	tx, err := c.send(ctx, &to, calldata)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return c.handle(tx, receipt), nil
}

// WaitForConfirmations polls the chain head until the transaction's block
// is confirmations deep. There is no timeout; cancel ctx to stop waiting.
func (c *Client) WaitForConfirmations(ctx context.Context, tx *models.TxHandle, confirmations int) error {
	if c.backend == nil {
		return errors.New("not connected to blockchain")
	}
	if confirmations <= 0 {
		return nil
	}

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, tx.Hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			// dropped by a reorg; wait for re-inclusion
		case err != nil:
			return fmt.Errorf("failed to get transaction receipt: %w", err)
		default:
			head, err := c.backend.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("failed to get block number: %w", err)
			}
			mined := receipt.BlockNumber.Uint64()
			if head >= mined && head-mined+1 >= uint64(confirmations) {
				return nil
			}
		}

		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) send(ctx context.Context, to *common.Address, data []byte) (*types.Transaction, error) {
	if c.backend == nil {
		return nil, errors.New("not connected to blockchain")
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas += gas * gasMarginPercent / 100

	tx, err := c.buildSignedTx(ctx, nonce, to, gas, data)
	if err != nil {
		return nil, err
	}

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	c.log.Debug("sent transaction", "hash", tx.Hash().Hex(), "nonce", nonce, "gas", gas, "type", tx.Type())
	return tx, nil
}

// buildSignedTx uses EIP-1559 fees when the chain reports a base fee and
// legacy pricing otherwise
func (c *Client) buildSignedTx(ctx context.Context, nonce uint64, to *common.Address, gas uint64, data []byte) (*types.Transaction, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	signer := types.LatestSignerForChainID(c.chainID)

	if header.BaseFee == nil {
		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       to,
			Value:    big.NewInt(0),
			Gas:      gas,
			GasPrice: gasPrice,
			Data:     data,
		})
		signedTx, err := types.SignTx(tx, signer, c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to sign legacy tx: %w", err)
		}
		return signedTx, nil
	}

	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), tipCap)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		To:        to,
		Value:     big.NewInt(0),
		Gas:       gas,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Data:      data,
	})
	signedTx, err := types.SignTx(tx, signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign dynamic fee tx: %w", err)
	}
	return signedTx, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
		}
		if err := c.sleep(ctx); err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), err)
		}
	}
}

func (c *Client) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) handle(tx *types.Transaction, receipt *types.Receipt) *models.TxHandle {
	h := &models.TxHandle{Hash: tx.Hash(), From: c.from}
	if receipt.BlockNumber != nil {
		h.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return h
}

// Ensure the client implements the interface
var _ usecase.ChainClient = (*Client)(nil)
