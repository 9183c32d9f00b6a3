package transfer

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

var ErrInvalidFeeSpecification = errors.New("max fee and max priority fee must be set together")

// FeeOverride carries user supplied priority-fee pricing in wei. Leaving both
// fields nil asks the network for a legacy gas price instead.
type FeeOverride struct {
	MaxFee         *big.Int
	MaxPriorityFee *big.Int
}

func (f FeeOverride) Validate() error {
	if (f.MaxFee == nil) != (f.MaxPriorityFee == nil) {
		return ErrInvalidFeeSpecification
	}
	if f.MaxFee != nil && (f.MaxFee.Sign() < 0 || f.MaxPriorityFee.Sign() < 0) {
		return ErrInvalidFeeSpecification
	}
	if f.MaxFee != nil && f.MaxPriorityFee.Cmp(f.MaxFee) > 0 {
		return ErrInvalidFeeSpecification
	}
	return nil
}

func (f FeeOverride) IsSet() bool {
	return f.MaxFee != nil && f.MaxPriorityFee != nil
}

// Fee is either LegacyFee or DynamicFee.
type Fee interface {
	isFee()
}

type LegacyFee struct {
	GasPrice *big.Int
}

type DynamicFee struct {
	MaxFee         *big.Int
	MaxPriorityFee *big.Int
}

func (LegacyFee) isFee()  {}
func (DynamicFee) isFee() {}

// PricedTransaction is an unsigned transaction with gas, nonce and pricing
// settled.
type PricedTransaction struct {
	From    common.Address
	To      common.Address
	Value   *big.Int
	Data    []byte
	Gas     uint64
	Nonce   uint64
	ChainID *big.Int
	Fee     Fee
}

// Transaction converts p into a legacy or dynamic fee transaction depending
// on its Fee.
func (p *PricedTransaction) Transaction() (*gethtypes.Transaction, error) {
	to := p.To
	value := p.Value
	if value == nil {
		value = new(big.Int)
	}
	switch fee := p.Fee.(type) {
	case DynamicFee:
		return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:   p.ChainID,
			Nonce:     p.Nonce,
			GasTipCap: fee.MaxPriorityFee,
			GasFeeCap: fee.MaxFee,
			Gas:       p.Gas,
			To:        &to,
			Value:     value,
			Data:      p.Data,
		}), nil
	case LegacyFee:
		return gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    p.Nonce,
			GasPrice: fee.GasPrice,
			Gas:      p.Gas,
			To:       &to,
			Value:    value,
			Data:     p.Data,
		}), nil
	}
	return nil, errors.New("transaction has no fee")
}
