package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/KyberNetwork/chainscape/pkg/types"
)

const (
	moduleAccount  = "account"
	moduleContract = "contract"

	actionGetABI      = "getabi"
	actionSourceCode  = "getsourcecode"
	actionTxList      = "txlist"
	actionTokenNFTTx  = "tokennfttx"
	actionToken1155Tx = "token1155tx"

	sortAscending = "asc"
)

// Page narrows a list action. A nil StartBlock starts from genesis and a zero
// Offset leaves the page size to the explorer.
type Page struct {
	StartBlock *uint64
	Offset     int
}

func (p Page) apply(req Request) Request {
	req.StartBlock = p.StartBlock
	if p.Offset > 0 {
		req.Page = 1
		req.Offset = p.Offset
	}
	req.Sort = sortAscending
	return req
}

// Client exposes the explorer actions as typed calls on top of an API.
type Client struct {
	api API
}

func NewClient(api API) *Client {
	return &Client{api: api}
}

// ContractABI returns the verified ABI of contract as a JSON string.
func (c *Client) ContractABI(ctx context.Context, contract common.Address) (string, error) {
	raw, err := c.api.Call(ctx, Request{
		Module:  moduleContract,
		Action:  actionGetABI,
		Address: contract.Hex(),
	})
	if err != nil {
		return "", err
	}
	var abiJSON string
	if err := json.Unmarshal(raw, &abiJSON); err != nil {
		return "", fmt.Errorf("decode %s result: %w", actionGetABI, err)
	}
	return abiJSON, nil
}

func (c *Client) SourceCode(ctx context.Context, contract common.Address) (string, error) {
	raw, err := c.api.Call(ctx, Request{
		Module:  moduleContract,
		Action:  actionSourceCode,
		Address: contract.Hex(),
	})
	if err != nil {
		return "", err
	}
	var entries []rawSourceCode
	if err := json.Unmarshal(raw, &entries); err != nil {
		return "", fmt.Errorf("decode %s result: %w", actionSourceCode, err)
	}
	if len(entries) == 0 {
		return "", errors.New("no source code entry for " + contract.Hex())
	}
	return entries[0].SourceCode, nil
}

// Transactions returns one page of the normal transaction list of account.
func (c *Client) Transactions(ctx context.Context, account common.Address, page Page) ([]Transaction, error) {
	raw, err := c.api.Call(ctx, page.apply(Request{
		Module:  moduleAccount,
		Action:  actionTxList,
		Address: account.Hex(),
	}))
	if err != nil {
		return nil, err
	}
	var rows []rawTransaction
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", actionTxList, err)
	}
	txs := make([]Transaction, 0, len(rows))
	for i, r := range rows {
		tx, err := r.decode()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", actionTxList, i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// TokenTransfers returns one page of token movements of account restricted to
// contract.
func (c *Client) TokenTransfers(ctx context.Context, account, contract common.Address, kind types.TokenKind, page Page) ([]types.TransferEvent, error) {
	var action string
	switch kind {
	case types.NonFungible:
		action = actionTokenNFTTx
	case types.SemiFungible:
		action = actionToken1155Tx
	default:
		return nil, fmt.Errorf("unsupported token kind %q", kind)
	}

	raw, err := c.api.Call(ctx, page.apply(Request{
		Module:          moduleAccount,
		Action:          action,
		Address:         account.Hex(),
		ContractAddress: contract.Hex(),
	}))
	if err != nil {
		return nil, err
	}
	var rows []rawTokenTransfer
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", action, err)
	}
	events := make([]types.TransferEvent, 0, len(rows))
	for i, r := range rows {
		e, err := r.decode(kind)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", action, i, err)
		}
		events = append(events, e)
	}
	return events, nil
}
