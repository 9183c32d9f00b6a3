package wallet

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/types"
	"github.com/KyberNetwork/chainscape/pkg/utils"
)

var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrKeyMismatch    = errors.New("private key does not match address")
)

// Manager holds the wallet set of one CSV file in memory. Changes are only
// persisted by Save.
type Manager struct {
	path    string
	wallets []*types.Wallet
	logger  *zap.SugaredLogger
}

// Open loads the wallets stored at path. A missing file yields an empty set
// that Save will create.
func Open(path string, logger *zap.SugaredLogger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	wallets, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Infow("wallet file not found, starting empty", "path", path)
		wallets, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, wallets: wallets, logger: logger}, nil
}

// NewManager wraps an in-memory wallet set.
func NewManager(path string, wallets []*types.Wallet, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{path: path, wallets: wallets, logger: logger}
}

func (m *Manager) Wallets() []*types.Wallet {
	return m.wallets
}

// Addresses returns every wallet address in file order.
func (m *Manager) Addresses() []common.Address {
	out := make([]common.Address, 0, len(m.wallets))
	for _, w := range m.wallets {
		out = append(out, common.HexToAddress(w.Address))
	}
	return out
}

// Add appends a wallet. When address is empty it is recovered from
// privateKey; when both are given they must agree.
func (m *Manager) Add(name, address, privateKey string) (*types.Wallet, error) {
	privateKey = strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if address == "" && privateKey == "" {
		return nil, fmt.Errorf("%w: need an address or a private key", utils.ErrInvalidAddress)
	}

	var addr common.Address
	if address != "" {
		var err error
		if addr, err = utils.ParseAddress(address); err != nil {
			return nil, err
		}
	}
	if privateKey != "" {
		key, err := crypto.HexToECDSA(privateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		owner := crypto.PubkeyToAddress(key.PublicKey)
		if address != "" && owner != addr {
			return nil, fmt.Errorf("%w: %s", ErrKeyMismatch, addr.Hex())
		}
		addr = owner
	}

	if m.index(addr) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, addr.Hex())
	}
	w := &types.Wallet{Name: name, Address: addr.Hex()}
	if privateKey != "" {
		w.PrivateKey = &privateKey
	}
	m.wallets = append(m.wallets, w)
	m.logger.Infow("wallet added", "name", name, "address", w.Address, "has_key", w.PrivateKey != nil)
	return w, nil
}

func (m *Manager) Remove(address string) error {
	addr, err := utils.ParseAddress(address)
	if err != nil {
		return err
	}
	i := m.index(addr)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, addr.Hex())
	}
	m.wallets = append(m.wallets[:i], m.wallets[i+1:]...)
	m.logger.Infow("wallet removed", "address", addr.Hex())
	return nil
}

func (m *Manager) Get(address string) (*types.Wallet, error) {
	addr, err := utils.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	i := m.index(addr)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, addr.Hex())
	}
	return m.wallets[i], nil
}

// Receivers returns up to n wallet addresses in file order, skipping holding.
func (m *Manager) Receivers(holding common.Address, n int) []common.Address {
	var out []common.Address
	for _, w := range m.wallets {
		if len(out) >= n {
			break
		}
		addr := common.HexToAddress(w.Address)
		if addr == holding {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// SetBalances records wei balances on the matching wallets. Addresses not
// in the set are ignored.
func (m *Manager) SetBalances(balances map[common.Address]*big.Int) {
	for _, w := range m.wallets {
		if b, ok := balances[common.HexToAddress(w.Address)]; ok && b != nil {
			s := b.String()
			w.Balance = &s
		}
	}
}

// Save writes the set back to the file it was opened from.
func (m *Manager) Save() error {
	return m.Export(m.path)
}

func (m *Manager) Export(path string) error {
	if err := Save(path, m.wallets); err != nil {
		return err
	}
	m.logger.Infow("wallets saved", "path", path, "count", len(m.wallets))
	return nil
}

func (m *Manager) index(addr common.Address) int {
	for i, w := range m.wallets {
		if common.HexToAddress(w.Address) == addr {
			return i
		}
	}
	return -1
}
