package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/batch"
	"github.com/KyberNetwork/chainscape/pkg/types"
)

const DefaultPollInterval = time.Second

var errPending = errors.New("transaction pending")

// ReceiptSource looks up receipts, see chain.Client.
type ReceiptSource interface {
	Receipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
}

type WaiterOptions struct {
	PollInterval time.Duration
	// Timeout bounds a single Await, 0 waits until the context ends.
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// Waiter blocks until submitted transactions settle.
type Waiter struct {
	node         ReceiptSource
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.SugaredLogger
}

func NewWaiter(node ReceiptSource, opts WaiterOptions) *Waiter {
	w := &Waiter{
		node:         node,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		logger:       opts.Logger,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	if w.logger == nil {
		w.logger = zap.NewNop().Sugar()
	}
	return w
}

// Status looks the receipt of hash up once.
func (w *Waiter) Status(ctx context.Context, hash common.Hash) (types.Settlement, error) {
	receipt, err := w.node.Receipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return types.SettlementPending, nil
	}
	if err != nil {
		return types.SettlementPending, err
	}
	if receipt.Status == gethtypes.ReceiptStatusSuccessful {
		return types.SettlementSuccess, nil
	}
	return types.SettlementFailed, nil
}

// Await polls until hash is mined and reports whether it succeeded. Lookup
// errors are treated like a missing receipt. It only gives up when ctx ends or
// the configured timeout elapses, returning SettlementPending with the cause.
func (w *Waiter) Await(ctx context.Context, hash common.Hash) (types.Settlement, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	settlement := types.SettlementPending
	op := func() error {
		s, err := w.Status(ctx, hash)
		if err != nil {
			return err
		}
		if s == types.SettlementPending {
			return errPending
		}
		settlement = s
		return nil
	}
	notify := func(err error, _ time.Duration) {
		if !errors.Is(err, errPending) {
			w.logger.Warnw("receipt lookup failed", "hash", hash.Hex(), "error", err)
		}
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(w.pollInterval), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return types.SettlementPending, fmt.Errorf("await %s: %w", hash.Hex(), err)
	}
	w.logger.Infow("transaction settled", "hash", hash.Hex(), "settlement", settlement)
	return settlement, nil
}

// AwaitAll polls every hash until it settles. Each poll round looks up the
// hashes still pending at once and the next round starts PollInterval later.
// On timeout or cancellation the settled hashes are returned with the cause.
func (w *Waiter) AwaitAll(ctx context.Context, hashes []common.Hash) (map[common.Hash]types.Settlement, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	runner := batch.NewRunner[common.Hash, types.Settlement](batch.Options{
		RetryDelay: w.pollInterval,
		Logger:     w.logger,
	})
	out, err := runner.Run(ctx, hashes, func(ctx context.Context, hash common.Hash, _ int) (types.Settlement, error) {
		s, err := w.Status(ctx, hash)
		if err != nil {
			w.logger.Warnw("receipt lookup failed", "hash", hash.Hex(), "error", err)
			return s, err
		}
		if s == types.SettlementPending {
			return s, errPending
		}
		return s, nil
	})
	if err != nil {
		return out, fmt.Errorf("await %d transactions: %w", len(hashes), err)
	}
	return out, nil
}
