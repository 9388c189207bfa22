// Package evm anchors credential fingerprints in the registry contract on an
// EVM chain through go-ethereum.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"didlab/internal/ledger"
	"didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

// Config holds the chain connection settings.
type Config struct {
	RPCURL          string
	ContractAddress string
	// PrivateKey is the issuer key, hex with or without 0x.
	PrivateKey string
	// ChainID is queried from the node when zero.
	ChainID int64
	// ConfirmationTimeout bounds the wait for one confirmation. Zero leaves
	// the bound to the caller's context.
	ConfirmationTimeout    time.Duration
	AlreadyRecordedReasons []string
}

// backend is the subset of ethclient.Client the ledger uses.
type backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client is a ledger.Ledger backed by the registry contract.
type Client struct {
	backend  backend
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	issuer   common.Address
	cfg      Config
	logger   *slog.Logger
	closer   func()
}

// Dial connects to the node and binds the contract.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("ledger rpc url not configured")
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	if cfg.ChainID == 0 {
		id, err := eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
		cfg.ChainID = id.Int64()
	}
	c, err := New(eth, cfg, logger)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.closer = eth.Close
	return c, nil
}

// New binds the contract on an existing backend. cfg.ChainID must be set.
func New(b backend, cfg Config, logger *slog.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse issuer key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	if cfg.AlreadyRecordedReasons == nil {
		cfg.AlreadyRecordedReasons = DefaultAlreadyRecordedReasons
	}
	if logger == nil {
		logger = slog.Default()
	}
	address := common.HexToAddress(cfg.ContractAddress)
	return &Client{
		backend:  b,
		contract: bind.NewBoundContract(address, parsed, b, b, b),
		key:      key,
		chainID:  big.NewInt(cfg.ChainID),
		issuer:   crypto.PubkeyToAddress(key.PublicKey),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Close releases the RPC connection when the client owns it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Health reports whether the node answers and the contract has code deployed.
func (c *Client) Health(ctx context.Context) error {
	code, err := c.backend.CodeAt(ctx, common.HexToAddress(c.cfg.ContractAddress), nil)
	if err != nil {
		return fmt.Errorf("query contract code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract deployed at %s", c.cfg.ContractAddress)
	}
	return nil
}

func (c *Client) Issuer() domain.Address { return domain.AddressFromCommon(c.issuer) }

func (c *Client) Exists(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (bool, error) {
	hash, err := fp.Bytes32()
	if err != nil {
		return false, err
	}
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodVerify, subject.Common(), hash); err != nil {
		return false, classify(ledger.OpExists, err, c.cfg.AlreadyRecordedReasons)
	}
	if len(out) != 1 {
		return false, &ledger.Error{Op: ledger.OpExists, Kind: ledger.KindUnavailable, Reason: "unexpected return arity"}
	}
	exists, ok := out[0].(bool)
	if !ok {
		return false, &ledger.Error{Op: ledger.OpExists, Kind: ledger.KindUnavailable, Reason: "unexpected return type"}
	}
	return exists, nil
}

func (c *Client) Create(ctx context.Context, subject domain.Address, fp fingerprint.Fingerprint) (ledger.TxID, error) {
	hash, err := fp.Bytes32()
	if err != nil {
		return "", err
	}
	return c.transact(ctx, ledger.OpCreate, methodIssue, subject.Common(), hash)
}

// Revoke submits from the issuer key. The contract authorizes msg.sender, so
// the client refuses callers whose account it cannot sign for.
func (c *Client) Revoke(ctx context.Context, caller domain.Address, fp fingerprint.Fingerprint) (ledger.TxID, error) {
	hash, err := fp.Bytes32()
	if err != nil {
		return "", err
	}
	if caller.Common() != c.issuer {
		return "", &ledger.Error{Op: ledger.OpRevoke, Kind: ledger.KindUnauthorized, Reason: "no signing key for caller account"}
	}
	return c.transact(ctx, ledger.OpRevoke, methodRevoke, hash)
}

func (c *Client) transact(ctx context.Context, op ledger.Op, method string, params ...any) (ledger.TxID, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		return "", classify(op, err, c.cfg.AlreadyRecordedReasons)
	}
	c.logger.InfoContext(ctx, "ledger transaction submitted",
		"op", op,
		"ledger_tx_id", tx.Hash().Hex(),
	)
	return c.waitConfirmed(ctx, op, tx)
}

func (c *Client) waitConfirmed(ctx context.Context, op ledger.Op, tx *types.Transaction) (ledger.TxID, error) {
	if c.cfg.ConfirmationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConfirmationTimeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return "", classify(op, err, c.cfg.AlreadyRecordedReasons)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", &ledger.Error{Op: op, Kind: ledger.KindReverted, Reason: "transaction reverted on chain: " + tx.Hash().Hex()}
	}
	return ledger.TxID(tx.Hash().Hex()), nil
}

var _ ledger.Ledger = (*Client)(nil)
