package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/batch"
	"github.com/KyberNetwork/chainscape/pkg/chain"
	"github.com/KyberNetwork/chainscape/pkg/classifier"
	"github.com/KyberNetwork/chainscape/pkg/config"
	"github.com/KyberNetwork/chainscape/pkg/contents"
	"github.com/KyberNetwork/chainscape/pkg/explorer"
	"github.com/KyberNetwork/chainscape/pkg/logger"
	"github.com/KyberNetwork/chainscape/pkg/transfer"
	"github.com/KyberNetwork/chainscape/pkg/utils"
	"github.com/KyberNetwork/chainscape/pkg/wallet"
)

var _FlagConfig = &cli.StringFlag{
	Name:     "config",
	Usage:    "sets config file, config.yaml in . or config/ by default",
	Required: false,
}

var _FlagEnvPath = &cli.StringFlag{
	Name:     "env-path",
	Usage:    "sets directory holding .env and .env.local",
	Required: false,
}

var _FlagDebug = &cli.BoolFlag{
	Name:     "debug",
	Usage:    "enables debug logging",
	Required: false,
}

// env is built once per invocation in Before. Remote clients are created on
// first use so that wallet commands work offline.
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	sugar   *zap.SugaredLogger
	wallets *wallet.Manager

	node     *chain.Client
	explorer *explorer.Client
}

func newApp() *cli.App {
	e := &env{}
	return &cli.App{
		Name: "chainscape",
		Usage: "Inspect and move funds across a set of Ethereum wallets.\n\n" +
			"chainscape balances\n" +
			"chainscape tokens --contract 0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D --out holdings.csv\n" +
			"chainscape disperse-eth --from 0x... --amount 0.05 --count 10",
		Flags: []cli.Flag{
			_FlagConfig,
			_FlagEnvPath,
			_FlagDebug,
		},
		Before: func(ctx *cli.Context) error {
			return e.init(ctx.String(_FlagConfig.Name), ctx.String(_FlagEnvPath.Name), ctx.Bool(_FlagDebug.Name))
		},
		After: func(ctx *cli.Context) error {
			if e.log != nil {
				e.log.Flush(2 * time.Second)
			}
			return nil
		},
		Commands: []*cli.Command{
			balancesCommand(e),
			tokensCommand(e),
			gasCostsCommand(e),
			statusCommand(e),
			abiCommand(e),
			disperseEthCommand(e),
			disperseTokenCommand(e),
			sendNFTCommand(e),
			walletsCommand(e),
		},
	}
}

func (e *env) init(configFile, envPath string, debug bool) error {
	cfg, err := config.Load(configFile, envPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}
	e.cfg = cfg

	e.log, err = logger.New(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags:      map[string]string{"app": "chainscape"},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger - %w", err)
	}
	e.sugar = e.log.Sugar()

	e.wallets, err = wallet.Open(cfg.Wallets.CSVPath, e.sugar.Named("wallet"))
	return err
}

func (e *env) chain(ctx context.Context) (*chain.Client, error) {
	if e.node != nil {
		return e.node, nil
	}
	if e.cfg.Ethereum.RPCURL == "" {
		return nil, fmt.Errorf("ethereum.rpc_url is not configured")
	}
	eth, err := chain.Dial(ctx, e.cfg.Ethereum.RPCURL)
	if err != nil {
		return nil, err
	}
	node := chain.NewClient(eth, e.cfg.Remote.MaxInFlight, e.sugar.Named("chain"))
	if want := e.cfg.Ethereum.ChainID; want != 0 {
		got, err := node.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		if got.Uint64() != want {
			return nil, fmt.Errorf("node is on chain %s, configured for %d", got, want)
		}
	}
	e.node = node
	return node, nil
}

func (e *env) explorerClient() (*explorer.Client, error) {
	if e.explorer != nil {
		return e.explorer, nil
	}
	if e.cfg.Explorer.APIKey == "" {
		return nil, fmt.Errorf("explorer.api_key is not configured")
	}
	e.explorer = explorer.NewClient(explorer.NewHTTP(explorer.HTTPOptions{
		BaseURL:           e.cfg.Explorer.BaseURL,
		APIKey:            e.cfg.Explorer.APIKey,
		Timeout:           e.cfg.Explorer.Timeout,
		RequestsPerSecond: e.cfg.Explorer.RequestsPerSecond,
		MaxInFlight:       e.cfg.Remote.MaxInFlight,
		Logger:            e.sugar.Named("explorer"),
	}))
	return e.explorer, nil
}

func (e *env) batchOptions() batch.Options {
	return batch.Options{
		MaxConcurrency: e.cfg.Batch.MaxConcurrency,
		RetryDelay:     e.cfg.Batch.RetryDelay,
		MaxAttempts:    e.cfg.Batch.MaxAttempts,
	}
}

// contents wires a read service. needHistory and needNode select which
// remotes must be reachable.
func (e *env) contents(ctx context.Context, needNode, needHistory bool) (*contents.Service, error) {
	var (
		node    *chain.Client
		history contents.HistorySource
		cls     contents.ContractClassifier
		opts    []classifier.Option
	)
	if needHistory {
		client, err := e.explorerClient()
		if err != nil {
			return nil, err
		}
		history = explorer.NewFetcher(client, explorer.PageCap, e.sugar.Named("fetcher"))
		opts = append(opts, classifier.WithABISource(client))
	}
	if needNode {
		var err error
		if node, err = e.chain(ctx); err != nil {
			return nil, err
		}
		cls = classifier.New(node, e.sugar.Named("classifier"), opts...)
	}
	var balances contents.BalanceSource
	if node != nil {
		balances = node
	}
	return contents.New(balances, history, cls, e.batchOptions(), e.sugar.Named("contents")), nil
}

func (e *env) waiter(node *chain.Client) *transfer.Waiter {
	return transfer.NewWaiter(node, transfer.WaiterOptions{
		PollInterval: e.cfg.Confirm.PollInterval,
		Timeout:      e.cfg.Confirm.Timeout,
		Logger:       e.sugar.Named("waiter"),
	})
}

func (e *env) disperser(ctx context.Context) (*transfer.Disperser, error) {
	node, err := e.chain(ctx)
	if err != nil {
		return nil, err
	}
	disperse, err := utils.ParseAddress(e.cfg.Disperse.Contract)
	if err != nil {
		return nil, fmt.Errorf("disperse.contract: %w", err)
	}
	return transfer.NewDisperser(
		transfer.NewBuilder(node, disperse, e.sugar.Named("builder")),
		transfer.NewSender(node, e.sugar.Named("sender")),
		e.waiter(node),
		e.sugar.Named("disperser"),
	), nil
}

// accounts parses args, or returns every managed wallet when there are none.
func (e *env) accounts(args []string) ([]common.Address, error) {
	if len(args) == 0 {
		addrs := e.wallets.Addresses()
		if len(addrs) == 0 {
			return nil, fmt.Errorf("no addresses given and %s holds no wallets", e.cfg.Wallets.CSVPath)
		}
		return addrs, nil
	}
	return utils.ParseAddresses(args)
}

func formatEther(wei *big.Int) string {
	return utils.FromWei(wei, 1e18).Text('f', 18)
}
