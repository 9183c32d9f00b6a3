package abis

import (
	"bytes"
	_ "embed"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DisperseAddress is the Disperse.app contract on Ethereum mainnet.
var DisperseAddress = common.HexToAddress("0xD152f549545093347A162Dce210e7293f1452150")

var (
	//go:embed disperse.json
	disperse []byte
	//go:embed erc20.json
	erc20 []byte
	//go:embed erc721.json
	erc721 []byte
	//go:embed erc1155.json
	erc1155 []byte
	//go:embed proxy.json
	proxy []byte
)

var (
	Disperse abi.ABI
	ERC20    abi.ABI
	ERC721   abi.ABI
	ERC1155  abi.ABI
	// Proxy only exposes implementation(), used to resolve upgradeable token contracts.
	Proxy abi.ABI
)

func init() {
	builder := []struct {
		ABI  *abi.ABI
		data []byte
	}{
		{&Disperse, disperse},
		{&ERC20, erc20},
		{&ERC721, erc721},
		{&ERC1155, erc1155},
		{&Proxy, proxy},
	}

	for _, b := range builder {
		var err error
		*b.ABI, err = abi.JSON(bytes.NewReader(b.data))
		if err != nil {
			panic(err)
		}
	}
}
