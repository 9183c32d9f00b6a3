package transfer

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/chainscape/pkg/chain"
	"github.com/KyberNetwork/chainscape/pkg/mocks"
	"github.com/KyberNetwork/chainscape/pkg/types"
)

func receipt(status uint64) *gethtypes.Receipt {
	return &gethtypes.Receipt{Status: status}
}

func newWaiter(t *testing.T, timeout time.Duration) (*Waiter, *mocks.MockEthClient) {
	ctrl := gomock.NewController(t)
	eth := mocks.NewMockEthClient(ctrl)
	w := NewWaiter(chain.NewClient(eth, 0, nil), WaiterOptions{PollInterval: time.Millisecond, Timeout: timeout})
	return w, eth
}

func TestWaiter_Await(t *testing.T) {
	hash := common.HexToHash("0x01")
	tests := []struct {
		name    string
		replies []func() (*gethtypes.Receipt, error)
		want    types.Settlement
	}{
		{
			name: "pending then success",
			replies: []func() (*gethtypes.Receipt, error){
				func() (*gethtypes.Receipt, error) { return nil, ethereum.NotFound },
				func() (*gethtypes.Receipt, error) { return nil, ethereum.NotFound },
				func() (*gethtypes.Receipt, error) { return receipt(gethtypes.ReceiptStatusSuccessful), nil },
			},
			want: types.SettlementSuccess,
		},
		{
			name: "lookup error then failed",
			replies: []func() (*gethtypes.Receipt, error){
				func() (*gethtypes.Receipt, error) { return nil, errors.New("connection reset") },
				func() (*gethtypes.Receipt, error) { return receipt(gethtypes.ReceiptStatusFailed), nil },
			},
			want: types.SettlementFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, eth := newWaiter(t, 0)
			var calls atomic.Int32
			eth.EXPECT().
				TransactionReceipt(gomock.Any(), hash).
				DoAndReturn(func(context.Context, common.Hash) (*gethtypes.Receipt, error) {
					i := calls.Add(1) - 1
					return tt.replies[i]()
				}).
				Times(len(tt.replies))

			got, err := w.Await(context.Background(), hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWaiter_AwaitTimeout(t *testing.T) {
	w, eth := newWaiter(t, 20*time.Millisecond)
	eth.EXPECT().TransactionReceipt(gomock.Any(), gomock.Any()).Return(nil, ethereum.NotFound).AnyTimes()

	got, err := w.Await(context.Background(), common.HexToHash("0x02"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.SettlementPending, got)
}

func TestWaiter_Status(t *testing.T) {
	w, eth := newWaiter(t, 0)
	hash := common.HexToHash("0x03")
	eth.EXPECT().TransactionReceipt(gomock.Any(), hash).Return(nil, ethereum.NotFound)

	got, err := w.Status(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, types.SettlementPending, got)
}

func TestWaiter_AwaitAll(t *testing.T) {
	w, eth := newWaiter(t, 0)
	ok := common.HexToHash("0x0a")
	bad := common.HexToHash("0x0b")
	eth.EXPECT().TransactionReceipt(gomock.Any(), ok).Return(receipt(gethtypes.ReceiptStatusSuccessful), nil)
	eth.EXPECT().TransactionReceipt(gomock.Any(), bad).Return(receipt(gethtypes.ReceiptStatusFailed), nil)

	got, err := w.AwaitAll(context.Background(), []common.Hash{ok, bad})
	require.NoError(t, err)
	assert.Equal(t, map[common.Hash]types.Settlement{
		ok:  types.SettlementSuccess,
		bad: types.SettlementFailed,
	}, got)
}

func TestWaiter_AwaitAllPolls(t *testing.T) {
	w, eth := newWaiter(t, 0)
	slow := common.HexToHash("0x0c")
	fast := common.HexToHash("0x0d")
	gomock.InOrder(
		eth.EXPECT().TransactionReceipt(gomock.Any(), slow).Return(nil, ethereum.NotFound),
		eth.EXPECT().TransactionReceipt(gomock.Any(), slow).Return(nil, errors.New("connection reset")),
		eth.EXPECT().TransactionReceipt(gomock.Any(), slow).Return(receipt(gethtypes.ReceiptStatusSuccessful), nil),
	)
	eth.EXPECT().TransactionReceipt(gomock.Any(), fast).Return(receipt(gethtypes.ReceiptStatusSuccessful), nil).Times(1)

	got, err := w.AwaitAll(context.Background(), []common.Hash{slow, fast, slow})
	require.NoError(t, err)
	assert.Equal(t, map[common.Hash]types.Settlement{
		slow: types.SettlementSuccess,
		fast: types.SettlementSuccess,
	}, got)
}

func TestWaiter_AwaitAllTimeout(t *testing.T) {
	w, eth := newWaiter(t, 20*time.Millisecond)
	done := common.HexToHash("0x0e")
	stuck := common.HexToHash("0x0f")
	eth.EXPECT().TransactionReceipt(gomock.Any(), done).Return(receipt(gethtypes.ReceiptStatusFailed), nil)
	eth.EXPECT().TransactionReceipt(gomock.Any(), stuck).Return(nil, ethereum.NotFound).AnyTimes()

	got, err := w.AwaitAll(context.Background(), []common.Hash{done, stuck})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, map[common.Hash]types.Settlement{done: types.SettlementFailed}, got)
}

func TestSender_Send(t *testing.T) {
	key, from := testKey(t)
	ctrl := gomock.NewController(t)
	eth := mocks.NewMockEthClient(ctrl)
	s := NewSender(chain.NewClient(eth, 0, nil), nil)

	ptx := &PricedTransaction{
		From:    from,
		To:      common.HexToAddress(recipientA),
		Value:   big.NewInt(1),
		Gas:     21000,
		Nonce:   4,
		ChainID: chainID,
		Fee:     DynamicFee{MaxFee: gwei(30), MaxPriorityFee: gwei(1)},
	}

	var sent *gethtypes.Transaction
	eth.EXPECT().
		SendTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *gethtypes.Transaction) error {
			sent = tx
			return nil
		})

	hash, err := s.Send(context.Background(), ptx, key)
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, sent.Hash(), hash)

	signer, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(chainID), sent)
	require.NoError(t, err)
	assert.Equal(t, from, signer)
	assert.Equal(t, uint64(4), sent.Nonce())
}

func TestSender_SendRejectsForeignKey(t *testing.T) {
	key, _ := testKey(t)
	ctrl := gomock.NewController(t)
	eth := mocks.NewMockEthClient(ctrl)
	s := NewSender(chain.NewClient(eth, 0, nil), nil)

	_, err := s.Send(context.Background(), &PricedTransaction{From: common.HexToAddress(recipientA), ChainID: chainID, Fee: LegacyFee{GasPrice: gwei(1)}}, key)
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestParseKey(t *testing.T) {
	_, want := testKey(t)
	for _, s := range []string{testKeyHex, "0x" + testKeyHex} {
		key, err := ParseKey(s)
		require.NoError(t, err)
		assert.Equal(t, want, crypto.PubkeyToAddress(key.PublicKey))
	}
	_, err := ParseKey("zz")
	assert.Error(t, err)
}
