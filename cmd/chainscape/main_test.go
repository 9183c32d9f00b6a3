package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/chainscape/pkg/transfer"
	"github.com/KyberNetwork/chainscape/pkg/wallet"
)

const (
	testKeyHex  = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testKeyAddr = "0x71562b71999873DB5b286dF957af199Ec94617F7"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHAINSCAPE_WALLETS_CSV_PATH", filepath.Join(dir, "wallets.csv"))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	base := []string{"chainscape", "--config", filepath.Join(dir, "none.yaml"), "--env-path", dir}
	err := app.RunContext(context.Background(), append(base, args...))
	return out.String(), err
}

func TestWalletsCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "wallets", "add", "--name", "hot", "--private-key", "0x"+testKeyHex)
	require.NoError(t, err)
	_, err = run(t, dir, "wallets", "add", "--name", "cold", "--address", "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)

	_, err = run(t, dir, "wallets", "add", "--address", testKeyAddr)
	assert.ErrorIs(t, err, wallet.ErrWalletExists)

	out, err := run(t, dir, "wallets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, testKeyAddr)
	assert.Contains(t, out, "key=true")
	assert.Contains(t, out, "key=false")

	exported := filepath.Join(dir, "export.csv")
	_, err = run(t, dir, "wallets", "export", exported)
	require.NoError(t, err)
	wallets, err := wallet.Load(exported)
	require.NoError(t, err)
	assert.Len(t, wallets, 2)

	_, err = run(t, dir, "wallets", "remove", testKeyAddr)
	require.NoError(t, err)
	wallets, err = wallet.Load(filepath.Join(dir, "wallets.csv"))
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "cold", wallets[0].Name)
}

func TestRemoteCommandsNeedConfiguration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHAINSCAPE_ETHEREUM_RPC_URL", "")
	t.Setenv("CHAINSCAPE_EXPLORER_API_KEY", "")

	_, err := run(t, dir, "balances", "0x00000000000000000000000000000000000000aa")
	assert.ErrorContains(t, err, "ethereum.rpc_url")

	_, err = run(t, dir, "gas-costs", "0x00000000000000000000000000000000000000aa")
	assert.ErrorContains(t, err, "explorer.api_key")

	_, err = run(t, dir, "abi", "--contract", "0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D")
	assert.ErrorContains(t, err, "explorer.api_key")

	_, err = run(t, dir, "status")
	assert.ErrorContains(t, err, "at least one transaction hash")

	_, err = run(t, dir, "balances")
	assert.ErrorContains(t, err, "holds no wallets")
}

func TestABICommand(t *testing.T) {
	const verified = `[{"inputs":[],"name":"name","outputs":[{"type":"string"}],"type":"function"}]`
	var actions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		actions = append(actions, q.Get("action"))
		assert.Equal(t, "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d", q.Get("address"))
		var result interface{} = verified
		if q.Get("action") == "getsourcecode" {
			result = []map[string]string{{"SourceCode": "contract Apes {}", "ContractName": "Apes"}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "1", "message": "OK", "result": result})
	}))
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("CHAINSCAPE_EXPLORER_API_KEY", "test-key")
	t.Setenv("CHAINSCAPE_EXPLORER_BASE_URL", srv.URL)

	out, err := run(t, dir, "abi", "--contract", "0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D")
	require.NoError(t, err)
	assert.Equal(t, verified+"\n", out)

	out, err = run(t, dir, "abi", "--contract", "0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D", "--source")
	require.NoError(t, err)
	assert.Equal(t, "contract Apes {}\n", out)
	assert.Equal(t, []string{"getabi", "getsourcecode"}, actions)
}

func TestDisperseRejectsHalfFee(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "disperse-eth",
		"--from", testKeyAddr, "--key", testKeyHex,
		"--amount", "0.1", "--to", "0x00000000000000000000000000000000000000aa",
		"--max-fee", "30")
	assert.ErrorIs(t, err, transfer.ErrInvalidFeeSpecification)
}

func TestParseAmounts(t *testing.T) {
	got, err := parseAmounts([]string{"1", "20"}, parseInteger)
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(1), big.NewInt(20)}, got)

	_, err = parseAmounts([]string{"-1"}, parseInteger)
	assert.Error(t, err)
	_, err = parseAmounts([]string{"1.5"}, parseInteger)
	assert.Error(t, err)
}
