package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/KyberNetwork/chainscape/pkg/abis"
	"github.com/KyberNetwork/chainscape/pkg/types"
)

var ErrUnknownContract = errors.New("unknown token contract")

// Caller performs read-only contract calls, see chain.Client.
type Caller interface {
	Call(ctx context.Context, contract common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error)
}

// Classification tells how holdings of Contract are counted. Resolved is the
// address that answered name(): the contract itself, or the implementation
// behind a proxy.
type Classification struct {
	Kind     types.TokenKind
	Name     string
	Contract common.Address
	Resolved common.Address
}

// Proxied reports whether the name was resolved through an implementation.
func (c Classification) Proxied() bool {
	return c.Resolved != c.Contract
}

// ABISource returns the verified ABI of a contract as JSON, see
// explorer.Client.
type ABISource interface {
	ContractABI(ctx context.Context, contract common.Address) (string, error)
}

type Classifier struct {
	caller Caller
	abis   ABISource
	logger *zap.SugaredLogger
}

type Option func(*Classifier)

// WithABISource calls name() on proxy implementations through their verified
// ABI. Implementations without a usable ABI fall back to the ERC-1155 one.
func WithABISource(src ABISource) Option {
	return func(c *Classifier) {
		c.abis = src
	}
}

func New(caller Caller, logger *zap.SugaredLogger, opts ...Option) *Classifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Classifier{caller: caller, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify probes contract in two steps. A contract answering name() directly
// is treated as non-fungible. Otherwise it must be a proxy whose
// implementation() answers name(), and it is treated as semi-fungible.
func (c *Classifier) Classify(ctx context.Context, contract common.Address) (Classification, error) {
	name, nameErr := c.name(ctx, contract, abis.ERC721)
	if nameErr == nil {
		c.logger.Infow("classified contract", "contract", contract.Hex(), "kind", types.NonFungible, "name", name)
		return Classification{
			Kind:     types.NonFungible,
			Name:     name,
			Contract: contract,
			Resolved: contract,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	impl, implErr := c.implementation(ctx, contract)
	if implErr != nil {
		return Classification{}, fmt.Errorf("%w %s: name: %v; implementation: %v", ErrUnknownContract, contract.Hex(), nameErr, implErr)
	}
	name, err := c.name(ctx, impl, c.implementationABI(ctx, impl))
	if err != nil {
		return Classification{}, fmt.Errorf("%w %s: implementation %s name: %v", ErrUnknownContract, contract.Hex(), impl.Hex(), err)
	}

	c.logger.Infow("classified contract",
		"contract", contract.Hex(),
		"implementation", impl.Hex(),
		"kind", types.SemiFungible,
		"name", name,
	)
	return Classification{
		Kind:     types.SemiFungible,
		Name:     name,
		Contract: contract,
		Resolved: impl,
	}, nil
}

func (c *Classifier) name(ctx context.Context, contract common.Address, contractABI abi.ABI) (string, error) {
	out, err := c.caller.Call(ctx, contract, contractABI, "name")
	if err != nil {
		return "", err
	}
	name, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("name() returned %T", out[0])
	}
	return name, nil
}

func (c *Classifier) implementationABI(ctx context.Context, impl common.Address) abi.ABI {
	if c.abis == nil {
		return abis.ERC1155
	}
	raw, err := c.abis.ContractABI(ctx, impl)
	if err != nil {
		c.logger.Debugw("no verified abi, using erc1155", "implementation", impl.Hex(), "error", err)
		return abis.ERC1155
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		c.logger.Warnw("unreadable verified abi, using erc1155", "implementation", impl.Hex(), "error", err)
		return abis.ERC1155
	}
	if _, ok := parsed.Methods["name"]; !ok {
		return abis.ERC1155
	}
	return parsed
}

func (c *Classifier) implementation(ctx context.Context, proxy common.Address) (common.Address, error) {
	out, err := c.caller.Call(ctx, proxy, abis.Proxy, "implementation")
	if err != nil {
		return common.Address{}, err
	}
	impl, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("implementation() returned %T", out[0])
	}
	if impl == (common.Address{}) {
		return common.Address{}, errors.New("implementation() returned the zero address")
	}
	return impl, nil
}
