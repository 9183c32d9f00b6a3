package explorer

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/KyberNetwork/chainscape/pkg/types"
)

// Transaction is one entry of an account's normal transaction list.
type Transaction struct {
	Hash        common.Hash
	BlockNumber uint64
	From        common.Address
	To          common.Address
	Value       *big.Int
	GasUsed     uint64
	GasPrice    *big.Int
	Failed      bool
}

// Cost is the fee paid by the sender, gasUsed * gasPrice.
func (t Transaction) Cost() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(t.GasUsed), t.GasPrice)
}

type rawTransaction struct {
	BlockNumber string `json:"blockNumber"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasUsed     string `json:"gasUsed"`
	GasPrice    string `json:"gasPrice"`
	IsError     string `json:"isError"`
}

func (r rawTransaction) decode() (Transaction, error) {
	var (
		tx  Transaction
		err error
	)
	if tx.BlockNumber, err = parseUint("blockNumber", r.BlockNumber); err != nil {
		return tx, err
	}
	if tx.GasUsed, err = parseUint("gasUsed", r.GasUsed); err != nil {
		return tx, err
	}
	if tx.Value, err = parseBig("value", r.Value); err != nil {
		return tx, err
	}
	if tx.GasPrice, err = parseBig("gasPrice", r.GasPrice); err != nil {
		return tx, err
	}
	if tx.From, err = parseAddress("from", r.From); err != nil {
		return tx, err
	}
	// contract creations have an empty recipient
	if r.To != "" {
		if tx.To, err = parseAddress("to", r.To); err != nil {
			return tx, err
		}
	}
	tx.Hash = common.HexToHash(r.Hash)
	tx.Failed = r.IsError == "1"
	return tx, nil
}

type rawTokenTransfer struct {
	BlockNumber      string `json:"blockNumber"`
	LogIndex         string `json:"logIndex"`
	TransactionIndex string `json:"transactionIndex"`
	Hash             string `json:"hash"`
	From             string `json:"from"`
	To               string `json:"to"`
	ContractAddress  string `json:"contractAddress"`
	TokenID          string `json:"tokenID"`
	TokenValue       string `json:"tokenValue"`
	TokenName        string `json:"tokenName"`
}

// decode validates the numeric fields and converts them into a TransferEvent.
// Non-fungible rows carry no tokenValue and count as a quantity of one.
func (r rawTokenTransfer) decode(kind types.TokenKind) (types.TransferEvent, error) {
	var (
		e   types.TransferEvent
		err error
	)
	if e.BlockNumber, err = parseUint("blockNumber", r.BlockNumber); err != nil {
		return e, err
	}
	// token transfer lists usually omit logIndex, transactionIndex still
	// orders rows within the block
	if r.LogIndex != "" {
		if e.LogIndex, err = parseUint("logIndex", r.LogIndex); err != nil {
			return e, err
		}
		e.Indexed = true
	} else if e.LogIndex, err = parseUint("transactionIndex", r.TransactionIndex); err != nil {
		return e, err
	}
	id, err := parseBig("tokenID", r.TokenID)
	if err != nil {
		return e, err
	}
	e.TokenID = id.String()

	switch {
	case kind == types.NonFungible || r.TokenValue == "":
		e.Quantity = big.NewInt(1)
	default:
		if e.Quantity, err = parseBig("tokenValue", r.TokenValue); err != nil {
			return e, err
		}
	}

	if e.From, err = parseAddress("from", r.From); err != nil {
		return e, err
	}
	if e.To, err = parseAddress("to", r.To); err != nil {
		return e, err
	}
	if e.Contract, err = parseAddress("contractAddress", r.ContractAddress); err != nil {
		return e, err
	}
	e.TxHash = common.HexToHash(r.Hash)
	return e, nil
}

type rawSourceCode struct {
	SourceCode   string `json:"SourceCode"`
	ContractName string `json:"ContractName"`
}

func parseUint(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return v, nil
}

func parseBig(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s %q", field, s)
	}
	return common.HexToAddress(s), nil
}
