package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"

	"github.com/KyberNetwork/chainscape/pkg/types"
	"github.com/KyberNetwork/chainscape/pkg/utils"
)

var _FlagContract = &cli.StringFlag{
	Name:     "contract",
	Usage:    "sets token contract address",
	Required: true,
}

var _FlagOut = &cli.StringFlag{
	Name:     "out",
	Usage:    "writes holdings to this CSV file",
	Required: false,
}

var _FlagSource = &cli.BoolFlag{
	Name:     "source",
	Usage:    "prints the verified source code instead of the ABI",
	Required: false,
}

var _FlagWait = &cli.BoolFlag{
	Name:     "wait",
	Usage:    "waits until the transaction settles",
	Required: false,
}

func balancesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "balances",
		Usage:     "prints ether balances; without addresses every wallet is queried and the CSV updated",
		ArgsUsage: "[address...]",
		Action: func(ctx *cli.Context) error {
			accounts, err := e.accounts(ctx.Args().Slice())
			if err != nil {
				return err
			}
			svc, err := e.contents(ctx.Context, true, false)
			if err != nil {
				return err
			}
			balances, err := svc.Balances(ctx.Context, accounts)
			if err != nil {
				return err
			}

			w := ctx.App.Writer
			for _, account := range accounts {
				fmt.Fprintf(w, "%s  %s\n", account.Hex(), formatEther(balances[account]))
			}
			fmt.Fprintf(w, "total  %s\n", formatEther(utils.Sum(values(balances))))

			if ctx.Args().Len() == 0 {
				e.wallets.SetBalances(balances)
				return e.wallets.Save()
			}
			return nil
		},
	}
}

func tokensCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "tokens",
		Usage:     "finds the token ids of a NFT contract held by each wallet",
		ArgsUsage: "[address...]",
		Flags: []cli.Flag{
			_FlagContract,
			_FlagOut,
		},
		Action: func(ctx *cli.Context) error {
			contract, err := utils.ParseAddress(ctx.String(_FlagContract.Name))
			if err != nil {
				return err
			}
			accounts, err := e.accounts(ctx.Args().Slice())
			if err != nil {
				return err
			}
			svc, err := e.contents(ctx.Context, true, true)
			if err != nil {
				return err
			}
			holdings, err := svc.FindTokens(ctx.Context, contract, accounts)
			if err != nil {
				return err
			}

			w := ctx.App.Writer
			cls := holdings.Classification
			fmt.Fprintf(w, "%s (%s)", cls.Name, cls.Kind)
			if cls.Proxied() {
				fmt.Fprintf(w, " via implementation %s", cls.Resolved.Hex())
			}
			fmt.Fprintln(w)

			rows := holdings.Rows()
			for _, r := range rows {
				fmt.Fprintf(w, "%s  %s  %s\n", r.Wallet, r.TokenID, r.Amount)
			}
			for _, warning := range holdings.Warnings {
				fmt.Fprintf(ctx.App.ErrWriter, "warning: %s\n", warning.Error())
			}

			out := ctx.String(_FlagOut.Name)
			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := gocsv.MarshalFile(&rows, f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
}

func gasCostsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "gas-costs",
		Usage:     "sums the fees paid by each wallet over its whole history",
		ArgsUsage: "[address...]",
		Action: func(ctx *cli.Context) error {
			accounts, err := e.accounts(ctx.Args().Slice())
			if err != nil {
				return err
			}
			svc, err := e.contents(ctx.Context, false, true)
			if err != nil {
				return err
			}
			report, err := svc.GasCosts(ctx.Context, accounts)
			if err != nil {
				return err
			}

			w := ctx.App.Writer
			for _, account := range accounts {
				fmt.Fprintf(w, "%s  %s\n", account.Hex(), formatEther(report.PerAccount[account]))
			}
			fmt.Fprintf(w, "total  %s\n", formatEther(report.Total))
			return nil
		},
	}
}

func statusCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "prints pending, success or failed for each transaction",
		ArgsUsage: "<hash...>",
		Flags: []cli.Flag{
			_FlagWait,
		},
		Action: func(ctx *cli.Context) error {
			if ctx.Args().Len() == 0 {
				return fmt.Errorf("expected at least one transaction hash")
			}
			hashes := make([]common.Hash, 0, ctx.Args().Len())
			for _, arg := range ctx.Args().Slice() {
				hashes = append(hashes, common.HexToHash(arg))
			}
			node, err := e.chain(ctx.Context)
			if err != nil {
				return err
			}
			waiter := e.waiter(node)

			statuses := make(map[common.Hash]types.Settlement, len(hashes))
			if ctx.Bool(_FlagWait.Name) {
				// settled hashes are still printed when the wait is cut short
				statuses, err = waiter.AwaitAll(ctx.Context, hashes)
			} else {
				for _, hash := range hashes {
					var status types.Settlement
					if status, err = waiter.Status(ctx.Context, hash); err != nil {
						break
					}
					statuses[hash] = status
				}
			}
			for _, hash := range hashes {
				status, ok := statuses[hash]
				if !ok {
					status = types.SettlementPending
				}
				fmt.Fprintf(ctx.App.Writer, "%s  %s\n", hash.Hex(), status)
			}
			return err
		},
	}
}

func abiCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "abi",
		Usage: "prints the verified ABI of a contract as published on the explorer",
		Flags: []cli.Flag{
			_FlagContract,
			_FlagSource,
		},
		Action: func(ctx *cli.Context) error {
			contract, err := utils.ParseAddress(ctx.String(_FlagContract.Name))
			if err != nil {
				return err
			}
			client, err := e.explorerClient()
			if err != nil {
				return err
			}
			var out string
			if ctx.Bool(_FlagSource.Name) {
				out, err = client.SourceCode(ctx.Context, contract)
			} else {
				out, err = client.ContractABI(ctx.Context, contract)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, out)
			return nil
		},
	}
}

func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
