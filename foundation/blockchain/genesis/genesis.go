// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date       time.Time           `json:"date"`
	ChainID    uint16              `json:"chain_id"`   // The chain id represents an unique id for this running instance.
	Coinbase   common.Address      `json:"coinbase"`   // Account credited in the genesis header.
	Difficulty *big.Int            `json:"difficulty"` // Difficulty of the genesis block, the base for every adjustment.
	GasLimit   uint64              `json:"gas_limit"`  // Gas limit of the genesis block.
	TimeStamp  uint64              `json:"timestamp"`  // Timestamp of the genesis block.
	ExtraData  hexutil.Bytes       `json:"extra_data"` // Free form data in the genesis header.
	MixHash    common.Hash         `json:"mix_hash"`   // Mix digest of the genesis header.
	Nonce      database.BlockNonce `json:"nonce"`      // Proof of work nonce of the genesis header.
	Balances   map[string]string   `json:"balances"`   // Premine of decimal wei amounts keyed by address.
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	return Parse(content)
}

// Parse decodes and validates genesis content.
func Parse(content []byte) (Genesis, error) {
	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if genesis.Difficulty == nil || genesis.Difficulty.Sign() <= 0 {
		return Genesis{}, fmt.Errorf("genesis difficulty must be positive")
	}

	if _, err := genesis.premine(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// State returns a world state seeded with the premine.
func (g Genesis) State() (*world.Track, error) {
	premine, err := g.premine()
	if err != nil {
		return nil, err
	}

	view := world.New()
	for addr, balance := range premine {
		view.AddBalance(addr, balance)
	}

	return view, nil
}

// Block returns the genesis block. Its state root commits to the premine.
func (g Genesis) Block() (database.Block, error) {
	view, err := g.State()
	if err != nil {
		return database.Block{}, err
	}

	header := database.BlockHeader{
		Coinbase:   g.Coinbase,
		StateRoot:  view.RootHash(),
		Difficulty: new(big.Int).Set(g.Difficulty),
		Number:     0,
		GasLimit:   g.GasLimit,
		TimeStamp:  g.TimeStamp,
		ExtraData:  g.ExtraData,
		MixHash:    g.MixHash,
		Nonce:      g.Nonce,
	}

	return database.NewBlock(header, nil, nil), nil
}

// premine converts the balance table into typed values.
func (g Genesis) premine() (map[common.Address]*uint256.Int, error) {
	premine := make(map[common.Address]*uint256.Int, len(g.Balances))

	for account, amount := range g.Balances {
		addr, err := database.ToAddress(account)
		if err != nil {
			return nil, fmt.Errorf("premine account %q: %w", account, err)
		}

		balance, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("premine balance %q for %s: %w", amount, addr, err)
		}

		premine[addr] = balance
	}

	return premine, nil
}
