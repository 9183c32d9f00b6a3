package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/KyberNetwork/chainscape/pkg/types"
)

// Inconsistency reports a semi-fungible quantity that went negative while
// replaying, which means the event history of the account is incomplete.
type Inconsistency struct {
	Account     common.Address
	TokenID     string
	Quantity    *big.Int
	BlockNumber uint64
	LogIndex    uint64
}

func (i Inconsistency) Error() string {
	return fmt.Sprintf("ledger inconsistency: %s holds %s of token %s after block %d log %d",
		i.Account.Hex(), i.Quantity, i.TokenID, i.BlockNumber, i.LogIndex)
}

// Result is the replayed ledger plus any inconsistencies met on the way.
type Result struct {
	Ledger   types.TokenLedger
	Warnings []Inconsistency
}

// Reconstruct replays events into the token ledger of account. The input is
// not modified; a sorted copy is replayed in (block, log index) order.
//
// An event whose sender and receiver are both account is a no-op. Negative
// semi-fungible quantities are kept in the ledger and reported in Warnings.
func Reconstruct(account common.Address, events []types.TransferEvent, kind types.TokenKind) Result {
	ordered := make([]types.TransferEvent, len(events))
	copy(ordered, events)
	types.SortEvents(ordered)

	res := Result{Ledger: make(types.TokenLedger)}
	for _, e := range ordered {
		incoming := e.To == account
		outgoing := e.From == account
		if incoming == outgoing {
			// unrelated event, or a self-transfer
			continue
		}

		switch kind {
		case types.NonFungible:
			if incoming {
				res.Ledger[e.TokenID] = big.NewInt(1)
			} else {
				delete(res.Ledger, e.TokenID)
			}
		case types.SemiFungible:
			delta := quantity(e)
			if outgoing {
				delta.Neg(delta)
			}
			q := res.Ledger.Quantity(e.TokenID)
			q.Add(q, delta)
			switch q.Sign() {
			case 0:
				delete(res.Ledger, e.TokenID)
			case -1:
				res.Ledger[e.TokenID] = q
				res.Warnings = append(res.Warnings, Inconsistency{
					Account:     account,
					TokenID:     e.TokenID,
					Quantity:    new(big.Int).Set(q),
					BlockNumber: e.BlockNumber,
					LogIndex:    e.LogIndex,
				})
			default:
				res.Ledger[e.TokenID] = q
			}
		}
	}
	return res
}

func quantity(e types.TransferEvent) *big.Int {
	if e.Quantity == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(e.Quantity)
}
