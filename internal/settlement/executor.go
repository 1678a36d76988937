// Package settlement resolves mirror markets on-chain with an oracle-signed
// message.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/mirrorarb/internal/crypto"
	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// Config tunes the executor's RPC behaviour.
type Config struct {
	RequestTimeout time.Duration
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	GasLimitBuffer float64
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ReceiptTimeout <= 0 {
		c.ReceiptTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.GasLimitBuffer < 1 {
		c.GasLimitBuffer = 1
	}
	return c
}

// Result is a successful resolution.
type Result struct {
	TxHash       common.Hash
	BlockNumber  uint64
	Source       domain.Venue
	Signature    []byte
	Attempts     int
	UsedFallback bool
}

// Executor drives one resolution: authorize, read, sign, submit, wait.
type Executor struct {
	clients  *Clients
	contract *Contract
	signer   *crypto.OracleSigner
	cfg      Config
	logger   *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(clients *Clients, contract *Contract, signer *crypto.OracleSigner, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		clients:  clients,
		contract: contract,
		signer:   signer,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "settlement_executor")),
	}
}

// OracleAddress returns the signer address.
func (e *Executor) OracleAddress() common.Address {
	return e.signer.Address()
}

// Resolve settles mirrorKey with the given outcome. Every failure is an
// *Error. An unauthorized signer fails before anything is signed or sent.
func (e *Executor) Resolve(ctx context.Context, mirrorKey common.Hash, yesWon bool) (*Result, error) {
	primary, err := e.clients.Primary(ctx)
	if err != nil {
		return nil, &Error{Op: "dial", Attempts: 1, Err: err}
	}

	oracle := e.signer.Address()
	authorized, err := e.readAuthorized(ctx, primary, oracle)
	if err != nil {
		e.clients.ResetPrimary()
		return nil, &Error{Op: "authorize", Attempts: 1, Err: err}
	}
	if !authorized {
		e.logger.WarnContext(ctx, "oracle not authorized", slog.String("oracle", oracle.Hex()))
		return nil, &Error{Op: "authorize", Attempts: 1, Err: domain.ErrUnauthorized}
	}

	market, err := e.readMarket(ctx, primary, mirrorKey)
	if err != nil {
		e.clients.ResetPrimary()
		return nil, &Error{Op: "read_market", Attempts: 1, Err: err}
	}
	if !market.Exists() {
		return nil, &Error{Op: "read_market", Attempts: 1, Err: domain.ErrNotFound}
	}

	sig, err := e.signer.SignResolution(mirrorKey, yesWon)
	if err != nil {
		return nil, &Error{Op: "sign", Attempts: 1, Err: err}
	}

	tx, err := e.submit(ctx, primary, mirrorKey, yesWon, sig)
	if err != nil {
		return nil, &Error{Op: "submit", Attempts: 1, Err: err}
	}
	e.logger.InfoContext(ctx, "resolve submitted",
		slog.String("mirror_key", mirrorKey.Hex()),
		slog.Bool("yes_won", yesWon),
		slog.String("tx", tx.Hash().Hex()),
		slog.String("source", string(market.ExternalLink.Source)),
	)

	res := &Result{
		TxHash:    tx.Hash(),
		Source:    market.ExternalLink.Source,
		Signature: sig,
		Attempts:  1,
	}

	receipt, err := e.waitReceipt(ctx, primary, tx.Hash())
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		e.logger.WarnContext(ctx, "receipt wait timed out on primary, retrying on fallback",
			slog.String("tx", tx.Hash().Hex()),
			slog.String("error", err.Error()),
		)
		e.clients.ResetPrimary()
		res.Attempts = 2
		res.UsedFallback = true

		fallback, ferr := e.clients.Fallback(ctx)
		if ferr != nil {
			return nil, &Error{Op: "receipt", Attempts: res.Attempts, Err: errors.Join(err, ferr)}
		}
		receipt, err = e.waitReceipt(ctx, fallback, tx.Hash())
	}
	if err != nil {
		return nil, &Error{Op: "receipt", Attempts: res.Attempts, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &Error{Op: "receipt", Attempts: res.Attempts, Err: fmt.Errorf("%w: tx %s", ErrReverted, tx.Hash().Hex())}
	}

	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	e.logger.InfoContext(ctx, "mirror market resolved",
		slog.String("mirror_key", mirrorKey.Hex()),
		slog.String("tx", res.TxHash.Hex()),
		slog.Uint64("block", res.BlockNumber),
		slog.Int("attempts", res.Attempts),
	)
	return res, nil
}

func (e *Executor) readAuthorized(ctx context.Context, cl ChainClient, oracle common.Address) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	return e.contract.IsAuthorizedOracle(ctx, cl, oracle)
}

func (e *Executor) readMarket(ctx context.Context, cl ChainClient, key common.Hash) (domain.MirrorMarket, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	return e.contract.GetMirrorMarket(ctx, cl, key)
}

// submit builds, signs and sends the resolve transaction.
func (e *Executor) submit(ctx context.Context, cl ChainClient, key common.Hash, yesWon bool, sig []byte) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	data, err := e.contract.PackResolve(key, yesWon, sig)
	if err != nil {
		return nil, err
	}
	from := e.signer.Address()
	to := e.contract.Address()

	nonce, err := cl.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := cl.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	gas, err := cl.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas = uint64(float64(gas) * e.cfg.GasLimitBuffer)

	tx, err := e.signer.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	}))
	if err != nil {
		return nil, err
	}
	if err := cl.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	return tx, nil
}

// waitReceipt polls for the receipt until ReceiptTimeout. ethereum.NotFound
// means still pending; any other RPC error is returned as is.
func (e *Executor) waitReceipt(ctx context.Context, cl ChainClient, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := cl.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), domain.ErrReceiptTimeout)
		case <-ticker.C:
		}
	}
}

// SignatureHex formats a signature for storage and API responses.
func SignatureHex(sig []byte) string {
	return hexutil.Encode(sig)
}
