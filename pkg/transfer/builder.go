package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/abis"
	"github.com/KyberNetwork/chainscape/pkg/utils"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLengthMismatch    = errors.New("amounts must be a single value or one per recipient")
	ErrNoRecipients      = errors.New("no recipients")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Node is the part of chain.Client needed to price and fund transactions.
type Node interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// Call is the unpriced intent of a transaction.
type Call struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

type Builder struct {
	node     Node
	disperse common.Address
	logger   *zap.SugaredLogger
}

// NewBuilder returns a Builder encoding disperse calls against disperse, or
// against the Disperse.app deployment when it is the zero address.
func NewBuilder(node Node, disperse common.Address, logger *zap.SugaredLogger) *Builder {
	if disperse == (common.Address{}) {
		disperse = abis.DisperseAddress
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Builder{node: node, disperse: disperse, logger: logger}
}

// Build estimates gas for call and settles nonce, chain id and pricing. The
// estimate is used as the gas limit as is.
func (b *Builder) Build(ctx context.Context, call Call, fee FeeOverride) (*PricedTransaction, error) {
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	to := call.To
	gas, err := b.node.EstimateGas(ctx, ethereum.CallMsg{
		From:  call.From,
		To:    &to,
		Value: value,
		Data:  call.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	nonce, err := b.node.PendingNonce(ctx, call.From)
	if err != nil {
		return nil, fmt.Errorf("nonce of %s: %w", call.From.Hex(), err)
	}
	chainID, err := b.node.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}

	ptx := &PricedTransaction{
		From:    call.From,
		To:      call.To,
		Value:   value,
		Data:    call.Data,
		Gas:     gas,
		Nonce:   nonce,
		ChainID: chainID,
	}
	if fee.IsSet() {
		ptx.Fee = DynamicFee{MaxFee: fee.MaxFee, MaxPriorityFee: fee.MaxPriorityFee}
		b.logger.Infow("custom gas settings",
			"max_fee_gwei", utils.FromWei(fee.MaxFee, params.GWei),
			"max_priority_fee_gwei", utils.FromWei(fee.MaxPriorityFee, params.GWei),
		)
		return ptx, nil
	}

	gasPrice, err := b.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	ptx.Fee = LegacyFee{GasPrice: gasPrice}
	b.logger.Infow("gas estimate for current tx", "gas", gas, "gas_price_gwei", utils.FromWei(gasPrice, params.GWei))
	return ptx, nil
}

// DisperseEther prices one disperseEther call paying every recipient. A single
// amount is paid to each recipient, otherwise amounts pair with recipients.
func (b *Builder) DisperseEther(ctx context.Context, from common.Address, recipients []string, amounts []*big.Int, fee FeeOverride) (*PricedTransaction, error) {
	to, values, err := prepare(recipients, amounts, fee)
	if err != nil {
		return nil, err
	}
	total := utils.Sum(values)

	balance, err := b.node.Balance(ctx, from)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(total) < 0 {
		return nil, fmt.Errorf("%w: %s holds %s wei, needs %s", ErrInsufficientFunds, from.Hex(), balance, total)
	}

	data, err := abis.Disperse.Pack("disperseEther", to, values)
	if err != nil {
		return nil, fmt.Errorf("pack disperseEther: %w", err)
	}
	return b.Build(ctx, Call{From: from, To: b.disperse, Value: total, Data: data}, fee)
}

// DisperseToken prices one disperse call moving ERC-20 token from the sender
// to every recipient. The disperse contract must already hold an allowance.
func (b *Builder) DisperseToken(ctx context.Context, from, token common.Address, recipients []string, amounts []*big.Int, fee FeeOverride) (*PricedTransaction, error) {
	to, values, err := prepare(recipients, amounts, fee)
	if err != nil {
		return nil, err
	}
	total := utils.Sum(values)

	balance, err := b.node.TokenBalance(ctx, token, from)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(total) < 0 {
		return nil, fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientFunds, from.Hex(), balance, token.Hex(), total)
	}

	data, err := abis.Disperse.Pack("disperse", token, to, values)
	if err != nil {
		return nil, fmt.Errorf("pack disperse: %w", err)
	}
	return b.Build(ctx, Call{From: from, To: b.disperse, Data: data}, fee)
}

// TransferNFT prices safeTransferFrom(from, to, tokenID) on an ERC-721 contract.
func (b *Builder) TransferNFT(ctx context.Context, from, contract common.Address, to string, tokenID *big.Int, fee FeeOverride) (*PricedTransaction, error) {
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	recipient, err := utils.ParseAddress(to)
	if err != nil {
		return nil, err
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("%w: token id %v", ErrInvalidAmount, tokenID)
	}

	data, err := abis.ERC721.Pack("safeTransferFrom", from, recipient, tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack safeTransferFrom: %w", err)
	}
	return b.Build(ctx, Call{From: from, To: contract, Data: data}, fee)
}

// prepare checks everything that can be checked without a remote call.
func prepare(recipients []string, amounts []*big.Int, fee FeeOverride) ([]common.Address, []*big.Int, error) {
	if err := fee.Validate(); err != nil {
		return nil, nil, err
	}
	if len(recipients) == 0 {
		return nil, nil, ErrNoRecipients
	}
	to, err := utils.ParseAddresses(recipients)
	if err != nil {
		return nil, nil, err
	}
	values, err := expandAmounts(amounts, len(to))
	if err != nil {
		return nil, nil, err
	}
	return to, values, nil
}

func expandAmounts(amounts []*big.Int, n int) ([]*big.Int, error) {
	for i, a := range amounts {
		if a == nil || a.Sign() < 0 {
			return nil, fmt.Errorf("%w at index %d", ErrInvalidAmount, i)
		}
	}
	switch len(amounts) {
	case n:
		return amounts, nil
	case 1:
		values := make([]*big.Int, n)
		for i := range values {
			values[i] = new(big.Int).Set(amounts[0])
		}
		return values, nil
	}
	return nil, fmt.Errorf("%w: %d amounts for %d recipients", ErrLengthMismatch, len(amounts), n)
}
