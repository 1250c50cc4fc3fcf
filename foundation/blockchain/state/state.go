// Package state is the core API for the blockchain and implements all the
// business rules and processing for importing blocks.
package state

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/executor"
	"github.com/ardanlabs/frontier/foundation/blockchain/genesis"
	"github.com/ardanlabs/frontier/foundation/blockchain/metrics"
	"github.com/ardanlabs/frontier/foundation/blockchain/pow"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/ardanlabs/frontier/foundation/blockchain/vm"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and pending state updates.
type Worker interface {
	Shutdown()
	SignalBestBlock(blk database.Block)
	SignalStartMining()
	SignalCancelMining()
}

// =============================================================================

// Params holds the protocol constants used to validate and process blocks.
type Params struct {
	Pow                  pow.Params
	Gas                  executor.Gas
	BlockReward          *uint256.Int
	UncleListLimit       int
	UncleGenerationLimit int
	MaxExtraDataSize     int
	GasLimitBoundDivisor uint64
	MinGasLimit          uint64
}

// Frontier returns the parameters of the frontier release.
func Frontier() Params {
	return Params{
		Pow:                  pow.Frontier(),
		Gas:                  executor.Frontier(),
		BlockReward:          uint256.NewInt(5_000_000_000_000_000_000),
		UncleListLimit:       2,
		UncleGenerationLimit: 7,
		MaxExtraDataSize:     32,
		GasLimitBoundDivisor: 1024,
		MinGasLimit:          125000,
	}
}

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Storage        *storage.Store
	Genesis        genesis.Genesis
	Params         Params
	Interpreter    vm.Interpreter
	Coinbase       common.Address
	StateCacheSize int
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	params       Params
	coinbase     common.Address
	evHandler    EventHandler
	storage      *storage.Store
	executor     *executor.Executor
	cache        *lru.Cache[common.Hash, *world.Track]
	genesis      database.Block
	genesisState *world.Track

	headMu    sync.RWMutex
	head      database.Block
	headTD    *big.Int
	headState *world.Track

	Worker Worker
}

// New constructs a new blockchain for data management. The canonical chain
// in storage is replayed on top of the genesis state.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	params := cfg.Params
	if params.BlockReward == nil {
		params = Frontier()
	}

	size := cfg.StateCacheSize
	if size <= 0 {
		size = 64
	}

	cache, err := lru.New[common.Hash, *world.Track](size)
	if err != nil {
		return nil, fmt.Errorf("state cache: %w", err)
	}

	genesisBlock, err := cfg.Genesis.Block()
	if err != nil {
		return nil, fmt.Errorf("genesis block: %w", err)
	}

	genesisState, err := cfg.Genesis.State()
	if err != nil {
		return nil, fmt.Errorf("genesis state: %w", err)
	}

	s := State{
		params:    params,
		coinbase:  cfg.Coinbase,
		evHandler: ev,
		storage:   cfg.Storage,
		executor: executor.New(executor.Config{
			Interpreter: cfg.Interpreter,
			Gas:         params.Gas,
			EvHandler:   executor.EventHandler(ev),
		}),
		cache:        cache,
		genesis:      genesisBlock,
		genesisState: genesisState,
	}

	if err := s.loadChain(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &s, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Make sure the database is properly closed.
	defer func() {
		s.storage.Close()
	}()

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// =============================================================================

// loadChain seeds an empty store with the genesis block or replays the
// stored canonical chain to rebuild the head state.
func (s *State) loadChain() error {
	headHash, err := s.storage.Head()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.evHandler("state: loadChain: seeding genesis: blk[%s]", s.genesis.Header)

		u := s.storage.NewUpdate()
		if err := u.WriteBlock(s.genesis, s.genesis.Header.Difficulty, nil); err != nil {
			return fmt.Errorf("write genesis: %w", err)
		}
		if err := u.SetCanonical(s.genesis, nil); err != nil {
			return fmt.Errorf("write genesis: %w", err)
		}
		if err := u.SetHead(s.genesis.Hash()); err != nil {
			return fmt.Errorf("write genesis: %w", err)
		}
		if err := u.Write(); err != nil {
			return fmt.Errorf("write genesis: %w", err)
		}

		s.setHead(s.genesis, s.genesis.Header.Difficulty, s.genesisState.Snapshot())
		return nil

	case err != nil:
		return fmt.Errorf("load head: %w", err)
	}

	canon, err := s.storage.CanonicalHash(0)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if canon != s.genesis.Hash() {
		return fmt.Errorf("%w: stored[%s] file[%s]", ErrGenesisMismatch, canon, s.genesis.Hash())
	}

	head, err := s.storage.Block(headHash)
	if err != nil {
		return fmt.Errorf("load head: %w", err)
	}

	td, err := s.storage.TotalDifficulty(headHash)
	if err != nil {
		return fmt.Errorf("load head: %w", err)
	}

	s.evHandler("state: loadChain: replaying: blocks[%d]", head.Number())

	view := s.genesisState.Snapshot()
	for num := uint64(1); num <= head.Number(); num++ {
		blk, err := s.storage.BlockByNumber(num)
		if err != nil {
			return fmt.Errorf("replay block %d: %w", num, err)
		}

		if _, err := s.processBlock(view, blk); err != nil {
			return fmt.Errorf("replay block %s: %w", blk.Header, err)
		}
	}

	s.cache.Add(headHash, view)
	s.setHead(head, td, view)

	s.evHandler("state: loadChain: head: blk[%s]: td[%d]", head.Header, td)

	return nil
}

// setHead records the canonical head and its immutable post state.
func (s *State) setHead(blk database.Block, td *big.Int, view *world.Track) {
	s.headMu.Lock()
	defer s.headMu.Unlock()

	s.head = blk
	s.headTD = new(big.Int).Set(td)
	s.headState = view

	metrics.HeadNumber.Set(float64(blk.Number()))
}
