package classifier

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/chainscape/pkg/abis"
	"github.com/KyberNetwork/chainscape/pkg/chain"
	"github.com/KyberNetwork/chainscape/pkg/mocks"
	"github.com/KyberNetwork/chainscape/pkg/types"
)

var (
	nftContract   = common.HexToAddress("0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D")
	proxyContract = common.HexToAddress("0x76BE3b62873462d2142405439777e971754E8E77")
	implContract  = common.HexToAddress("0x0000000000000000000000000000000000001155")
	deadContract  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

	errReverted = errors.New("execution reverted")
)

// node answers name() and implementation() for a fixed set of contracts and
// reverts everything else.
type node struct {
	t     *testing.T
	names map[common.Address]string
	impls map[common.Address]common.Address
}

func (n node) call(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	selector := msg.Data[:4]
	switch {
	case bytes.Equal(selector, abis.ERC721.Methods["name"].ID):
		name, ok := n.names[*msg.To]
		if !ok {
			return nil, errReverted
		}
		out, err := abis.ERC721.Methods["name"].Outputs.Pack(name)
		require.NoError(n.t, err)
		return out, nil
	case bytes.Equal(selector, abis.Proxy.Methods["implementation"].ID):
		impl, ok := n.impls[*msg.To]
		if !ok {
			return nil, errReverted
		}
		out, err := abis.Proxy.Methods["implementation"].Outputs.Pack(impl)
		require.NoError(n.t, err)
		return out, nil
	}
	return nil, errReverted
}

func newClassifier(t *testing.T, n node, opts ...Option) *Classifier {
	ctrl := gomock.NewController(t)
	eth := mocks.NewMockEthClient(ctrl)
	n.t = t
	eth.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(n.call).AnyTimes()
	return New(chain.NewClient(eth, 0, nil), nil, opts...)
}

// verifiedABIs serves ABIs the way the explorer's getabi action does.
type verifiedABIs struct {
	abis      map[common.Address]string
	requested []common.Address
}

func (v *verifiedABIs) ContractABI(_ context.Context, contract common.Address) (string, error) {
	v.requested = append(v.requested, contract)
	raw, ok := v.abis[contract]
	if !ok {
		return "", errors.New("Contract source code not verified")
	}
	return raw, nil
}

func TestClassifier_Classify(t *testing.T) {
	n := node{
		names: map[common.Address]string{
			nftContract:  "BoredApeYachtClub",
			implContract: "Editions",
		},
		impls: map[common.Address]common.Address{
			proxyContract: implContract,
			deadContract:  deadContract,
		},
	}

	tests := []struct {
		name     string
		contract common.Address
		want     Classification
		wantErr  assert.ErrorAssertionFunc
	}{
		{
			name:     "name answered directly",
			contract: nftContract,
			want: Classification{
				Kind:     types.NonFungible,
				Name:     "BoredApeYachtClub",
				Contract: nftContract,
				Resolved: nftContract,
			},
			wantErr: assert.NoError,
		},
		{
			name:     "name answered by implementation",
			contract: proxyContract,
			want: Classification{
				Kind:     types.SemiFungible,
				Name:     "Editions",
				Contract: proxyContract,
				Resolved: implContract,
			},
			wantErr: assert.NoError,
		},
		{
			name:     "implementation without name",
			contract: deadContract,
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorIs(t, err, ErrUnknownContract)
			},
		},
		{
			name:     "neither name nor implementation",
			contract: common.HexToAddress("0x0000000000000000000000000000000000000001"),
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorIs(t, err, ErrUnknownContract) && assert.ErrorContains(t, err, "execution reverted")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClassifier(t, n)
			got, err := c.Classify(context.Background(), tt.contract)
			if !tt.wantErr(t, err) {
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassification_Proxied(t *testing.T) {
	assert.False(t, Classification{Contract: nftContract, Resolved: nftContract}.Proxied())
	assert.True(t, Classification{Contract: proxyContract, Resolved: implContract}.Proxied())
}

func TestClassifier_ClassifyWithVerifiedABI(t *testing.T) {
	const (
		nameABI  = `[{"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}]`
		otherABI = `[{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`
	)
	n := node{
		names: map[common.Address]string{implContract: "Editions"},
		impls: map[common.Address]common.Address{proxyContract: implContract},
	}
	want := Classification{
		Kind:     types.SemiFungible,
		Name:     "Editions",
		Contract: proxyContract,
		Resolved: implContract,
	}

	tests := []struct {
		name string
		abis map[common.Address]string
	}{
		{name: "verified", abis: map[common.Address]string{implContract: nameABI}},
		{name: "not verified", abis: nil},
		{name: "verified without name", abis: map[common.Address]string{implContract: otherABI}},
		{name: "unreadable", abis: map[common.Address]string{implContract: "Contract source code not verified"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &verifiedABIs{abis: tt.abis}
			c := newClassifier(t, n, WithABISource(src))
			got, err := c.Classify(context.Background(), proxyContract)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, []common.Address{implContract}, src.requested)
		})
	}
}

func TestClassifier_DirectNameSkipsABISource(t *testing.T) {
	src := &verifiedABIs{}
	c := newClassifier(t, node{names: map[common.Address]string{nftContract: "BoredApeYachtClub"}}, WithABISource(src))
	_, err := c.Classify(context.Background(), nftContract)
	require.NoError(t, err)
	assert.Empty(t, src.requested)
}
