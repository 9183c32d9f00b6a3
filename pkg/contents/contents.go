package contents

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/batch"
	"github.com/KyberNetwork/chainscape/pkg/classifier"
	"github.com/KyberNetwork/chainscape/pkg/explorer"
	"github.com/KyberNetwork/chainscape/pkg/ledger"
	"github.com/KyberNetwork/chainscape/pkg/types"
)

// BalanceSource returns native balances, see chain.Client.
type BalanceSource interface {
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// HistorySource returns complete account histories, see explorer.Fetcher.
type HistorySource interface {
	FetchAll(ctx context.Context, account common.Address, filter explorer.Filter) ([]types.TransferEvent, error)
	FetchTransactions(ctx context.Context, account common.Address) ([]explorer.Transaction, error)
}

// ContractClassifier tells how holdings of a token contract are counted.
type ContractClassifier interface {
	Classify(ctx context.Context, contract common.Address) (classifier.Classification, error)
}

// Service answers wallet content queries over many accounts at once.
type Service struct {
	node       BalanceSource
	history    HistorySource
	classifier ContractClassifier
	batchOpts  batch.Options
	logger     *zap.SugaredLogger
}

func New(node BalanceSource, history HistorySource, cls ContractClassifier, opts batch.Options, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	opts.Logger = logger
	return &Service{
		node:       node,
		history:    history,
		classifier: cls,
		batchOpts:  opts,
		logger:     logger,
	}
}

// Balances returns the native balance of every account in wei.
func (s *Service) Balances(ctx context.Context, accounts []common.Address) (map[common.Address]*big.Int, error) {
	runner := batch.NewRunner[common.Address, *big.Int](s.batchOpts)
	return runner.Run(ctx, accounts, func(ctx context.Context, account common.Address, _ int) (*big.Int, error) {
		return s.node.Balance(ctx, account)
	})
}

// TokenIDs replays the transfer history of account on contract.
func (s *Service) TokenIDs(ctx context.Context, account, contract common.Address, kind types.TokenKind) (ledger.Result, error) {
	events, err := s.history.FetchAll(ctx, account, explorer.Filter{Contract: contract, Kind: kind})
	if err != nil {
		return ledger.Result{}, err
	}
	return ledger.Reconstruct(account, events, kind), nil
}

// FindTokens classifies contract and collects what each account holds of it.
// Accounts holding nothing are left out.
func (s *Service) FindTokens(ctx context.Context, contract common.Address, accounts []common.Address) (*Holdings, error) {
	cls, err := s.classifier.Classify(ctx, contract)
	if err != nil {
		return nil, err
	}

	runner := batch.NewRunner[common.Address, ledger.Result](s.batchOpts)
	results, err := runner.Run(ctx, accounts, func(ctx context.Context, account common.Address, _ int) (ledger.Result, error) {
		res, err := s.TokenIDs(ctx, account, contract, cls.Kind)
		if explorer.IsPermanent(err) {
			return res, batch.Permanent(err)
		}
		return res, err
	})
	if err != nil {
		return nil, err
	}

	h := &Holdings{
		Classification: cls,
		ByAccount:      make(map[common.Address]types.TokenLedger),
	}
	seen := make(map[common.Address]struct{}, len(accounts))
	for _, account := range accounts {
		if _, ok := seen[account]; ok {
			continue
		}
		seen[account] = struct{}{}

		res := results[account]
		for _, w := range res.Warnings {
			s.logger.Warnw("incomplete transfer history", "account", account.Hex(), "token_id", w.TokenID, "quantity", w.Quantity, "block", w.BlockNumber)
		}
		h.Warnings = append(h.Warnings, res.Warnings...)
		if len(res.Ledger) == 0 {
			continue
		}
		h.Accounts = append(h.Accounts, account)
		h.ByAccount[account] = res.Ledger
	}
	s.logger.Infow("token search finished", "contract", contract.Hex(), "name", cls.Name, "kind", cls.Kind, "holders", len(h.Accounts), "searched", len(seen))
	return h, nil
}

// GasReport is the fee spent by each account on transactions it sent.
type GasReport struct {
	PerAccount map[common.Address]*big.Int
	Total      *big.Int
}

// GasCosts sums gasUsed * gasPrice over every transaction sent by each account.
func (s *Service) GasCosts(ctx context.Context, accounts []common.Address) (*GasReport, error) {
	runner := batch.NewRunner[common.Address, *big.Int](s.batchOpts)
	perAccount, err := runner.Run(ctx, accounts, func(ctx context.Context, account common.Address, _ int) (*big.Int, error) {
		txs, err := s.history.FetchTransactions(ctx, account)
		if err != nil {
			if explorer.IsPermanent(err) {
				return nil, batch.Permanent(err)
			}
			return nil, err
		}
		spent := new(big.Int)
		for _, tx := range txs {
			if tx.From == account {
				spent.Add(spent, tx.Cost())
			}
		}
		return spent, nil
	})
	if err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, spent := range perAccount {
		total.Add(total, spent)
	}
	return &GasReport{PerAccount: perAccount, Total: total}, nil
}
