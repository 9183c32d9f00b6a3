package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var _FlagName = &cli.StringFlag{
	Name:     "name",
	Usage:    "sets wallet nickname",
	Required: false,
}

var _FlagAddress = &cli.StringFlag{
	Name:     "address",
	Usage:    "sets wallet address, recovered from --private-key when absent",
	Required: false,
}

var _FlagPrivateKey = &cli.StringFlag{
	Name:     "private-key",
	Usage:    "sets hex private key to store with the wallet",
	Required: false,
}

func walletsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "wallets",
		Usage: "manages the wallet CSV",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "lists wallets in file order",
				Action: func(ctx *cli.Context) error {
					for _, w := range e.wallets.Wallets() {
						balance := "-"
						if w.Balance != nil {
							balance = *w.Balance
						}
						fmt.Fprintf(ctx.App.Writer, "%-16s  %s  key=%t  balance=%s\n", w.Name, w.Address, w.PrivateKey != nil, balance)
					}
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "adds a wallet and saves the CSV",
				Flags: []cli.Flag{
					_FlagName,
					_FlagAddress,
					_FlagPrivateKey,
				},
				Action: func(ctx *cli.Context) error {
					w, err := e.wallets.Add(ctx.String(_FlagName.Name), ctx.String(_FlagAddress.Name), ctx.String(_FlagPrivateKey.Name))
					if err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "added %s\n", w.Address)
					return e.wallets.Save()
				},
			},
			{
				Name:      "remove",
				Usage:     "removes a wallet and saves the CSV",
				ArgsUsage: "<address>",
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() != 1 {
						return fmt.Errorf("expected one address")
					}
					if err := e.wallets.Remove(ctx.Args().First()); err != nil {
						return err
					}
					return e.wallets.Save()
				},
			},
			{
				Name:      "export",
				Usage:     "writes the wallet set to another CSV file",
				ArgsUsage: "<path>",
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() != 1 {
						return fmt.Errorf("expected one output path")
					}
					return e.wallets.Export(ctx.Args().First())
				},
			},
		},
	}
}
