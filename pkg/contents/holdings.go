package contents

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/KyberNetwork/chainscape/pkg/classifier"
	"github.com/KyberNetwork/chainscape/pkg/ledger"
	"github.com/KyberNetwork/chainscape/pkg/types"
)

// Holdings is the result of a token search. Accounts lists the holders in
// the order they were searched.
type Holdings struct {
	Classification classifier.Classification
	Accounts       []common.Address
	ByAccount      map[common.Address]types.TokenLedger
	Warnings       []ledger.Inconsistency
}

// Rows flattens the holdings into one row per (account, token id), ordered by
// account then token id.
func (h *Holdings) Rows() []types.TokenHolding {
	var rows []types.TokenHolding
	for _, account := range h.Accounts {
		l := h.ByAccount[account]
		for _, id := range l.TokenIDs() {
			rows = append(rows, types.TokenHolding{
				Wallet:    account.Hex(),
				TokenID:   id,
				Amount:    l[id].String(),
				TokenName: h.Classification.Name,
			})
		}
	}
	return rows
}
