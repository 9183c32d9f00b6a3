package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress validates a hex address in any letter case.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// NormalizeAddress returns the EIP-55 checksum form of s.
func NormalizeAddress(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// ParseAddresses parses every entry of ss, failing on the first invalid one.
func ParseAddresses(ss []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(ss))
	for _, s := range ss {
		addr, err := ParseAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// SameAddress compares two textual addresses ignoring letter case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// EtherToWei parses a decimal ether amount such as "0.05".
func EtherToWei(s string) (*big.Int, error) {
	return parseUnit(s, 18)
}

// GweiToWei parses a decimal gwei amount such as "1.5".
func GweiToWei(s string) (*big.Int, error) {
	return parseUnit(s, 9)
}

// parseUnit scales a decimal string by 10^decimals. Digits beyond the unit's
// precision are truncated.
func parseUnit(s string, decimals int64) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}

// FromWei converts wei into unit, e.g. FromWei(x, params.Ether).
func FromWei(wei *big.Int, unit float64) *big.Float {
	if wei == nil {
		return new(big.Float)
	}
	f := new(big.Float).SetPrec(256).SetInt(wei)
	return f.Quo(f, big.NewFloat(unit))
}

// Sum adds up values; nil entries count as zero.
func Sum(values []*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}
