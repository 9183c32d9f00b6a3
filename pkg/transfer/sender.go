package transfer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var ErrKeyMismatch = errors.New("private key does not belong to sender")

// Broadcaster submits signed transactions, see chain.Client.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

type Sender struct {
	node   Broadcaster
	logger *zap.SugaredLogger
}

func NewSender(node Broadcaster, logger *zap.SugaredLogger) *Sender {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sender{node: node, logger: logger}
}

// Send signs ptx with key and broadcasts it.
func (s *Sender) Send(ctx context.Context, ptx *PricedTransaction, key *ecdsa.PrivateKey) (common.Hash, error) {
	if signer := crypto.PubkeyToAddress(key.PublicKey); signer != ptx.From {
		return common.Hash{}, fmt.Errorf("%w: key is %s, sender is %s", ErrKeyMismatch, signer.Hex(), ptx.From.Hex())
	}
	tx, err := ptx.Transaction()
	if err != nil {
		return common.Hash{}, err
	}
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(ptx.ChainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := s.node.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", signed.Hash().Hex(), err)
	}
	s.logger.Infow("transaction sent",
		"hash", signed.Hash().Hex(),
		"from", ptx.From.Hex(),
		"to", ptx.To.Hex(),
		"nonce", ptx.Nonce,
		"value", ptx.Value,
	)
	return signed.Hash(), nil
}

// ParseKey accepts a hex private key with or without the 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
