package explorer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/types"
)

// PageCap is the largest page the explorer returns for list actions.
const PageCap = 10000

// Filter selects the token history to fetch.
type Filter struct {
	Contract common.Address
	Kind     types.TokenKind
}

// Fetcher assembles complete histories from capped pages. The cursor of the
// next page is the block number of the last entry of the previous one, so the
// boundary block is delivered twice and de-duplicated here.
type Fetcher struct {
	client  *Client
	pageCap int
	logger  *zap.SugaredLogger
}

func NewFetcher(client *Client, pageCap int, logger *zap.SugaredLogger) *Fetcher {
	if pageCap <= 0 {
		pageCap = PageCap
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fetcher{client: client, pageCap: pageCap, logger: logger}
}

// FetchAll returns every token transfer of account matching filter, ordered by
// (block, log index). An empty history is not an error.
func (f *Fetcher) FetchAll(ctx context.Context, account common.Address, filter Filter) ([]types.TransferEvent, error) {
	var (
		events []types.TransferEvent
		seen   = make(map[types.EventKey]struct{})
		page   Page
		pages  int
	)
	page.Offset = f.pageCap

	for {
		batch, err := f.client.TokenTransfers(ctx, account, filter.Contract, filter.Kind, page)
		if err != nil {
			return nil, fmt.Errorf("fetch transfers of %s: %w", account.Hex(), err)
		}
		pages++

		// each page restarts at the head of its first block, so counting
		// identical rows per page numbers them the same way on every page
		var (
			added       int
			occurrences = make(map[types.EventKey]int)
		)
		for _, e := range batch {
			key := e.Key()
			if !e.Indexed {
				n := occurrences[key]
				occurrences[key]++
				key.Occurrence = n
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			events = append(events, e)
			added++
		}

		if len(batch) < f.pageCap {
			break
		}
		if added == 0 {
			return nil, fmt.Errorf("%w: %s at block %d", ErrPaginationStalled, account.Hex(), batch[len(batch)-1].BlockNumber)
		}
		cursor := batch[len(batch)-1].BlockNumber
		page.StartBlock = &cursor
	}

	types.SortEvents(events)
	f.logger.Debugw("fetched transfer history",
		"account", account.Hex(),
		"contract", filter.Contract.Hex(),
		"kind", filter.Kind,
		"pages", pages,
		"events", len(events),
	)
	return events, nil
}

// FetchTransactions returns the full normal transaction list of account,
// de-duplicated by hash.
func (f *Fetcher) FetchTransactions(ctx context.Context, account common.Address) ([]Transaction, error) {
	var (
		txs  []Transaction
		seen = make(map[common.Hash]struct{})
		page = Page{Offset: f.pageCap}
	)

	for {
		batch, err := f.client.Transactions(ctx, account, page)
		if err != nil {
			return nil, fmt.Errorf("fetch transactions of %s: %w", account.Hex(), err)
		}

		added := 0
		for _, tx := range batch {
			if _, ok := seen[tx.Hash]; ok {
				continue
			}
			seen[tx.Hash] = struct{}{}
			txs = append(txs, tx)
			added++
		}

		if len(batch) < f.pageCap {
			return txs, nil
		}
		if added == 0 {
			return nil, fmt.Errorf("%w: %s at block %d", ErrPaginationStalled, account.Hex(), batch[len(batch)-1].BlockNumber)
		}
		cursor := batch[len(batch)-1].BlockNumber
		page.StartBlock = &cursor
	}
}
