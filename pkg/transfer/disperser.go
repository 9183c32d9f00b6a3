package transfer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/types"
)

var ErrTransactionFailed = errors.New("transaction failed")

// SettlementError names the token transfer that did not succeed.
type SettlementError struct {
	TokenID   *big.Int
	Recipient common.Address
	Hash      common.Hash
	Cause     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("token %s to %s at %s: %v", e.TokenID, e.Recipient.Hex(), e.Hash.Hex(), e.Cause)
}

func (e *SettlementError) Unwrap() error {
	return e.Cause
}

// Disperser builds, signs and submits disbursements from one key.
type Disperser struct {
	builder *Builder
	sender  *Sender
	waiter  *Waiter
	logger  *zap.SugaredLogger
}

func NewDisperser(builder *Builder, sender *Sender, waiter *Waiter, logger *zap.SugaredLogger) *Disperser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Disperser{builder: builder, sender: sender, waiter: waiter, logger: logger}
}

// SendEther disperses ether from the key's account in a single transaction.
func (d *Disperser) SendEther(ctx context.Context, key *ecdsa.PrivateKey, recipients []string, amounts []*big.Int, fee FeeOverride) (common.Hash, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)
	ptx, err := d.builder.DisperseEther(ctx, from, recipients, amounts, fee)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := d.sender.Send(ctx, ptx, key)
	if err != nil {
		return common.Hash{}, err
	}
	d.logger.Infow("dispersing ether", "hash", hash.Hex(), "total_wei", ptx.Value, "recipients", len(recipients))
	return hash, nil
}

// SendToken disperses an ERC-20 token from the key's account in a single
// transaction.
func (d *Disperser) SendToken(ctx context.Context, key *ecdsa.PrivateKey, token common.Address, recipients []string, amounts []*big.Int, fee FeeOverride) (common.Hash, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)
	ptx, err := d.builder.DisperseToken(ctx, from, token, recipients, amounts, fee)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := d.sender.Send(ctx, ptx, key)
	if err != nil {
		return common.Hash{}, err
	}
	d.logger.Infow("dispersing token", "hash", hash.Hex(), "token", token.Hex(), "recipients", len(recipients))
	return hash, nil
}

// SendNFTs transfers tokenIDs[i] to recipients[i] one at a time, waiting for
// each transfer to settle before sending the next so nonces never race. It
// stops at the first failed transfer and returns the hashes that succeeded.
func (d *Disperser) SendNFTs(ctx context.Context, key *ecdsa.PrivateKey, contract common.Address, recipients []string, tokenIDs []*big.Int, fee FeeOverride) ([]common.Hash, error) {
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if len(recipients) != len(tokenIDs) {
		return nil, fmt.Errorf("%w: %d token ids for %d recipients", ErrLengthMismatch, len(tokenIDs), len(recipients))
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	hashes := make([]common.Hash, 0, len(recipients))
	for i, to := range recipients {
		ptx, err := d.builder.TransferNFT(ctx, from, contract, to, tokenIDs[i], fee)
		if err != nil {
			return hashes, err
		}
		hash, err := d.sender.Send(ctx, ptx, key)
		if err != nil {
			return hashes, err
		}
		d.logger.Infow("sending token", "token_id", tokenIDs[i], "from", from.Hex(), "to", to, "hash", hash.Hex())

		settlement, err := d.waiter.Await(ctx, hash)
		if err != nil {
			return hashes, &SettlementError{TokenID: tokenIDs[i], Recipient: common.HexToAddress(to), Hash: hash, Cause: err}
		}
		if settlement == types.SettlementFailed {
			return hashes, &SettlementError{TokenID: tokenIDs[i], Recipient: common.HexToAddress(to), Hash: hash, Cause: ErrTransactionFailed}
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}
