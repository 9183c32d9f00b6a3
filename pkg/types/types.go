package types

import (
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Wallet is one row of the persisted wallet set.
type Wallet struct {
	Name       string  `csv:"name"`
	Address    string  `csv:"address"`
	PrivateKey *string `csv:"private_key,omitempty"`
	Balance    *string `csv:"balance,omitempty"`
}

// TokenKind distinguishes binary ownership from quantity ownership.
type TokenKind string

const (
	NonFungible  TokenKind = "erc721"
	SemiFungible TokenKind = "erc1155"
)

func (k TokenKind) Valid() bool {
	return k == NonFungible || k == SemiFungible
}

// TransferEvent is a single historical token movement. Events are totally
// ordered by (BlockNumber, LogIndex).
type TransferEvent struct {
	From        common.Address
	To          common.Address
	Contract    common.Address
	TokenID     string
	Quantity    *big.Int
	BlockNumber uint64
	// LogIndex orders events within a block. Rows delivered without a log
	// index carry their transaction index here and leave Indexed false.
	LogIndex uint64
	Indexed  bool
	TxHash   common.Hash
}

// EventKey identifies an event independently of the page it was delivered in.
// Indexed events are keyed by position alone. Others are keyed by their whole
// content, with Occurrence telling identical rows of one block apart.
type EventKey struct {
	BlockNumber uint64
	LogIndex    uint64
	TxHash      common.Hash
	From        common.Address
	To          common.Address
	TokenID     string
	Quantity    string
	Occurrence  int
}

// Key returns the identity of e with Occurrence left at zero.
func (e TransferEvent) Key() EventKey {
	if e.Indexed {
		return EventKey{BlockNumber: e.BlockNumber, LogIndex: e.LogIndex}
	}
	k := EventKey{
		BlockNumber: e.BlockNumber,
		LogIndex:    e.LogIndex,
		TxHash:      e.TxHash,
		From:        e.From,
		To:          e.To,
		TokenID:     e.TokenID,
	}
	if e.Quantity != nil {
		k.Quantity = e.Quantity.String()
	}
	return k
}

// Less reports whether e is replayed before o.
func (e TransferEvent) Less(o TransferEvent) bool {
	if e.BlockNumber != o.BlockNumber {
		return e.BlockNumber < o.BlockNumber
	}
	return e.LogIndex < o.LogIndex
}

// SortEvents orders events by (BlockNumber, LogIndex) in place. Ties keep
// their delivery order.
func SortEvents(events []TransferEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Less(events[j])
	})
}

// TokenLedger maps token id to held quantity for one (account, contract) pair.
// A missing key means nothing is held.
type TokenLedger map[string]*big.Int

// TokenIDs returns the held token ids in ascending numeric order. Ids that
// are not decimal integers sort after all numeric ones, lexically.
func (l TokenLedger) TokenIDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return compareTokenIDs(ids[i], ids[j]) < 0
	})
	return ids
}

func compareTokenIDs(a, b string) int {
	x, okX := new(big.Int).SetString(a, 10)
	y, okY := new(big.Int).SetString(b, 10)
	switch {
	case okX && okY:
		return x.Cmp(y)
	case okX:
		return -1
	case okY:
		return 1
	}
	return strings.Compare(a, b)
}

// Quantity returns the held quantity of id, zero when absent.
func (l TokenLedger) Quantity(id string) *big.Int {
	if q, ok := l[id]; ok {
		return new(big.Int).Set(q)
	}
	return new(big.Int)
}

// TokenHolding is one exported row of a token search.
type TokenHolding struct {
	Wallet    string `csv:"wallet"`
	TokenID   string `csv:"token_id"`
	Amount    string `csv:"amount"`
	TokenName string `csv:"token_name"`
}

// Settlement is the terminal state of a submitted transaction.
type Settlement string

const (
	SettlementPending Settlement = "pending"
	SettlementSuccess Settlement = "success"
	SettlementFailed  Settlement = "failed"
)
