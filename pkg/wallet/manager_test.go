package wallet

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/chainscape/pkg/types"
)

const (
	testKeyHex  = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testKeyAddr = "0x71562b71999873DB5b286dF957af199Ec94617F7"

	walletCSV = `name,address,private_key,balance
alice,0x00000000000000000000000000000000000000aa,,
bob,0x00000000000000000000000000000000000000bb,` + testKeyHex + `,12
carol,0x00000000000000000000000000000000000000cc,,
`
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func writeCSV(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "wallets.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	wallets, err := Load(writeCSV(t, walletCSV))
	require.NoError(t, err)
	require.Len(t, wallets, 3)

	assert.Equal(t, "alice", wallets[0].Name)
	assert.Equal(t, alice.Hex(), wallets[0].Address)
	assert.Nil(t, wallets[0].PrivateKey)
	assert.Nil(t, wallets[0].Balance)

	require.NotNil(t, wallets[1].PrivateKey)
	assert.Equal(t, testKeyHex, *wallets[1].PrivateKey)
	require.NotNil(t, wallets[1].Balance)
	assert.Equal(t, "12", *wallets[1].Balance)
}

func TestLoad_InvalidAddress(t *testing.T) {
	_, err := Load(writeCSV(t, "name,address,private_key,balance\nx,0x123,,\n"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeCSV(t, walletCSV)
	m, err := Open(path, nil)
	require.NoError(t, err)

	m.SetBalances(map[common.Address]*big.Int{alice: big.NewInt(42)})
	require.NoError(t, m.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reloaded, 3)
	require.NotNil(t, reloaded[0].Balance)
	assert.Equal(t, "42", *reloaded[0].Balance)
	assert.Equal(t, m.Wallets()[1].PrivateKey, reloaded[1].PrivateKey)
}

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.csv")
	m, err := Open(path, nil)
	require.NoError(t, err)
	assert.Empty(t, m.Wallets())

	_, err = m.Add("key only", "", "0x"+testKeyHex)
	require.NoError(t, err)
	require.NoError(t, m.Save())

	wallets, err := Load(path)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, testKeyAddr, wallets[0].Address)
}

func TestManager_Add(t *testing.T) {
	tests := []struct {
		name       string
		address    string
		privateKey string
		want       string
		wantErr    error
	}{
		{name: "address only", address: "0x00000000000000000000000000000000000000dd", want: "0x00000000000000000000000000000000000000dD"},
		{name: "recovered from key", privateKey: testKeyHex, want: testKeyAddr},
		{name: "address and matching key", address: "0x71562b71999873db5b286df957af199ec94617f7", privateKey: testKeyHex, want: testKeyAddr},
		{name: "key for another address", address: alice.Hex(), privateKey: testKeyHex, wantErr: ErrKeyMismatch},
		{name: "duplicate in other case", address: "0x00000000000000000000000000000000000000AA", wantErr: ErrWalletExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("", []*types.Wallet{{Name: "alice", Address: alice.Hex()}}, nil)
			w, err := m.Add(tt.name, tt.address, tt.privateKey)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, m.Wallets(), 1)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(tt.want).Hex(), w.Address)
			assert.Len(t, m.Wallets(), 2)
		})
	}
}

func TestManager_AddInvalid(t *testing.T) {
	m := NewManager("", nil, nil)
	_, err := m.Add("none", "", "")
	assert.Error(t, err)
	_, err = m.Add("bad key", "", "zz")
	assert.Error(t, err)
	assert.Empty(t, m.Wallets())
}

func TestManager_RemoveAndGet(t *testing.T) {
	wallets, err := Load(writeCSV(t, walletCSV))
	require.NoError(t, err)
	m := NewManager("", wallets, nil)

	w, err := m.Get("0x00000000000000000000000000000000000000BB")
	require.NoError(t, err)
	assert.Equal(t, "bob", w.Name)

	require.NoError(t, m.Remove(bob.Hex()))
	assert.Equal(t, []common.Address{alice, carol}, m.Addresses())

	assert.ErrorIs(t, m.Remove(bob.Hex()), ErrWalletNotFound)
	_, err = m.Get(bob.Hex())
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestManager_Receivers(t *testing.T) {
	wallets, err := Load(writeCSV(t, walletCSV))
	require.NoError(t, err)
	m := NewManager("", wallets, nil)

	assert.Equal(t, []common.Address{bob, carol}, m.Receivers(alice, 5))
	assert.Equal(t, []common.Address{alice}, m.Receivers(bob, 1))
	assert.Empty(t, m.Receivers(alice, 0))
}
