package main

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/KyberNetwork/chainscape/pkg/transfer"
	"github.com/KyberNetwork/chainscape/pkg/utils"
)

var _FlagFrom = &cli.StringFlag{
	Name:     "from",
	Usage:    "sets sending wallet, its key is read from the wallet CSV unless --key is given",
	Required: true,
}

var _FlagKey = &cli.StringFlag{
	Name:     "key",
	Usage:    "sets hex private key of the sending wallet",
	EnvVars:  []string{"CHAINSCAPE_PRIVATE_KEY"},
	Required: false,
}

var _FlagAmount = &cli.StringSliceFlag{
	Name:     "amount",
	Usage:    "sets amount per recipient, one value is used for all",
	Required: true,
}

var _FlagTo = &cli.StringSliceFlag{
	Name:     "to",
	Usage:    "sets recipients, defaults to the first wallets of the CSV",
	Required: false,
}

var _FlagCount = &cli.IntFlag{
	Name:     "count",
	Usage:    "sets number of CSV wallets to use as recipients when --to is absent",
	Required: false,
}

var _FlagToken = &cli.StringFlag{
	Name:     "token",
	Usage:    "sets ERC-20 token address",
	Required: true,
}

var _FlagTokenID = &cli.StringSliceFlag{
	Name:     "token-id",
	Usage:    "sets token ids to send, one per recipient",
	Required: true,
}

var _FlagMaxFee = &cli.StringFlag{
	Name:     "max-fee",
	Usage:    "sets EIP-1559 max fee per gas in gwei, requires --max-priority-fee",
	Required: false,
}

var _FlagMaxPriorityFee = &cli.StringFlag{
	Name:     "max-priority-fee",
	Usage:    "sets EIP-1559 max priority fee per gas in gwei, requires --max-fee",
	Required: false,
}

var feeFlags = []cli.Flag{_FlagMaxFee, _FlagMaxPriorityFee}

func disperseEthCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "disperse-eth",
		Usage: "sends ether to many recipients in one Disperse transaction",
		Flags: append([]cli.Flag{
			_FlagFrom, _FlagKey, _FlagAmount, _FlagTo, _FlagCount, _FlagWait,
		}, feeFlags...),
		Action: func(ctx *cli.Context) error {
			key, fee, recipients, err := e.disperseArgs(ctx)
			if err != nil {
				return err
			}
			amounts, err := parseAmounts(ctx.StringSlice(_FlagAmount.Name), utils.EtherToWei)
			if err != nil {
				return err
			}
			d, err := e.disperser(ctx.Context)
			if err != nil {
				return err
			}
			hash, err := d.SendEther(ctx.Context, key, recipients, amounts, fee)
			if err != nil {
				return err
			}
			return e.report(ctx, hash)
		},
	}
}

func disperseTokenCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "disperse-token",
		Usage: "sends an ERC-20 token to many recipients in one Disperse transaction, amounts in base units",
		Flags: append([]cli.Flag{
			_FlagFrom, _FlagKey, _FlagToken, _FlagAmount, _FlagTo, _FlagCount, _FlagWait,
		}, feeFlags...),
		Action: func(ctx *cli.Context) error {
			token, err := utils.ParseAddress(ctx.String(_FlagToken.Name))
			if err != nil {
				return err
			}
			key, fee, recipients, err := e.disperseArgs(ctx)
			if err != nil {
				return err
			}
			amounts, err := parseAmounts(ctx.StringSlice(_FlagAmount.Name), parseInteger)
			if err != nil {
				return err
			}
			d, err := e.disperser(ctx.Context)
			if err != nil {
				return err
			}
			hash, err := d.SendToken(ctx.Context, key, token, recipients, amounts, fee)
			if err != nil {
				return err
			}
			return e.report(ctx, hash)
		},
	}
}

func sendNFTCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "send-nft",
		Usage: "sends ERC-721 tokens one by one, stopping at the first failed transfer",
		Flags: append([]cli.Flag{
			_FlagFrom, _FlagKey, _FlagContract, _FlagTokenID, _FlagTo,
		}, feeFlags...),
		Action: func(ctx *cli.Context) error {
			contract, err := utils.ParseAddress(ctx.String(_FlagContract.Name))
			if err != nil {
				return err
			}
			ids, err := parseAmounts(ctx.StringSlice(_FlagTokenID.Name), parseInteger)
			if err != nil {
				return err
			}
			from, key, err := e.signer(ctx)
			if err != nil {
				return err
			}
			fee, err := parseFee(ctx)
			if err != nil {
				return err
			}
			recipients := ctx.StringSlice(_FlagTo.Name)
			if len(recipients) == 0 {
				recipients = hexes(e.wallets.Receivers(from, len(ids)))
			}

			d, err := e.disperser(ctx.Context)
			if err != nil {
				return err
			}
			hashes, err := d.SendNFTs(ctx.Context, key, contract, recipients, ids, fee)
			for i, hash := range hashes {
				fmt.Fprintf(ctx.App.Writer, "%s  %s  %s\n", ids[i], recipients[i], hash.Hex())
			}
			return err
		},
	}
}

// disperseArgs resolves the sender key, fee override and recipients shared
// by the disperse commands.
func (e *env) disperseArgs(ctx *cli.Context) (*ecdsa.PrivateKey, transfer.FeeOverride, []string, error) {
	from, key, err := e.signer(ctx)
	if err != nil {
		return nil, transfer.FeeOverride{}, nil, err
	}
	fee, err := parseFee(ctx)
	if err != nil {
		return nil, transfer.FeeOverride{}, nil, err
	}
	recipients := ctx.StringSlice(_FlagTo.Name)
	if len(recipients) == 0 {
		n := ctx.Int(_FlagCount.Name)
		if n <= 0 {
			return nil, transfer.FeeOverride{}, nil, fmt.Errorf("either --to or --count is required")
		}
		recipients = hexes(e.wallets.Receivers(from, n))
		if len(recipients) < n {
			return nil, transfer.FeeOverride{}, nil, fmt.Errorf("only %d receiving wallets available, %d requested", len(recipients), n)
		}
	}
	return key, fee, recipients, nil
}

func (e *env) signer(ctx *cli.Context) (common.Address, *ecdsa.PrivateKey, error) {
	from, err := utils.ParseAddress(ctx.String(_FlagFrom.Name))
	if err != nil {
		return common.Address{}, nil, err
	}
	hexKey := ctx.String(_FlagKey.Name)
	if hexKey == "" {
		w, err := e.wallets.Get(from.Hex())
		if err != nil {
			return common.Address{}, nil, err
		}
		if w.PrivateKey == nil {
			return common.Address{}, nil, fmt.Errorf("no private key stored for %s", from.Hex())
		}
		hexKey = *w.PrivateKey
	}
	key, err := transfer.ParseKey(hexKey)
	if err != nil {
		return common.Address{}, nil, err
	}
	if crypto.PubkeyToAddress(key.PublicKey) != from {
		return common.Address{}, nil, fmt.Errorf("%w: %s", transfer.ErrKeyMismatch, from.Hex())
	}
	return from, key, nil
}

func (e *env) report(ctx *cli.Context, hash common.Hash) error {
	fmt.Fprintf(ctx.App.Writer, "sent %s\n", hash.Hex())
	if !ctx.Bool(_FlagWait.Name) {
		return nil
	}
	node, err := e.chain(ctx.Context)
	if err != nil {
		return err
	}
	status, err := e.waiter(node).Await(ctx.Context, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "%s  %s\n", hash.Hex(), status)
	return nil
}

func parseFee(ctx *cli.Context) (transfer.FeeOverride, error) {
	var (
		fee transfer.FeeOverride
		err error
	)
	if s := ctx.String(_FlagMaxFee.Name); s != "" {
		if fee.MaxFee, err = utils.GweiToWei(s); err != nil {
			return fee, err
		}
	}
	if s := ctx.String(_FlagMaxPriorityFee.Name); s != "" {
		if fee.MaxPriorityFee, err = utils.GweiToWei(s); err != nil {
			return fee, err
		}
	}
	return fee, fee.Validate()
}

func parseAmounts(ss []string, parse func(string) (*big.Int, error)) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(ss))
	for _, s := range ss {
		v, err := parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInteger(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func hexes(addrs []common.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Hex())
	}
	return out
}
