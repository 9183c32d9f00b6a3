package wallet

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/KyberNetwork/chainscape/pkg/types"
	"github.com/KyberNetwork/chainscape/pkg/utils"
)

// Load reads a wallet CSV with the columns name,address,private_key,balance.
// Addresses are checksummed and empty optional columns become nil.
func Load(path string) ([]*types.Wallet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var wallets []*types.Wallet
	if err := gocsv.UnmarshalFile(f, &wallets); err != nil {
		return nil, fmt.Errorf("could not read wallets from %s: %w", path, err)
	}
	for i, w := range wallets {
		if w.Address, err = utils.NormalizeAddress(w.Address); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		w.PrivateKey = nilIfEmpty(w.PrivateKey)
		w.Balance = nilIfEmpty(w.Balance)
	}
	return wallets, nil
}

// Save writes wallets to path, replacing any existing file.
func Save(path string, wallets []*types.Wallet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&wallets, f); err != nil {
		f.Close()
		return fmt.Errorf("could not write wallets to %s: %w", path, err)
	}
	return f.Close()
}

func nilIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
