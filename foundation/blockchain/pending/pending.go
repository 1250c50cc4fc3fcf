// Package pending maintains the transactions that have not been included in
// a block yet and the speculative state they produce on top of the head.
package pending

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/executor"
	"github.com/ardanlabs/frontier/foundation/blockchain/metrics"
	"github.com/ardanlabs/frontier/foundation/blockchain/vm"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
)

// Set of events reported for pending transactions.
const (
	EventNewPending = "NEW_PENDING"
	EventDropped    = "DROPPED"
	EventIncluded   = "INCLUDED"
	EventPending    = "PENDING"
)

// Set of reasons a transaction is not admitted.
var (
	ErrKnownTx     = errors.New("transaction already seen")
	ErrUnderpriced = errors.New("gas price below the minimum")
)

// EventHandler defines a function that is called when events
// occur in the processing of pending transactions.
type EventHandler func(v string, args ...any)

// Chain represents the behavior required of the canonical chain.
type Chain interface {
	HeadState() (database.Block, *world.Track)
	Executor() *executor.Executor
	NextBlockContext() vm.BlockContext
	Fork(from common.Hash, to common.Hash) (abandoned []database.Block, adopted []database.Block, err error)
}

// Config represents the configuration for the pending state.
type Config struct {
	Chain             Chain
	MinGasPrice       *uint256.Int
	OutdatedThreshold uint64
	SeenCacheSize     int
	EvHandler         EventHandler
}

// Pending holds the wire received and locally submitted transactions and
// the state produced by applying them to a checkpoint of the head.
type Pending struct {
	mu          sync.RWMutex
	chain       Chain
	minGasPrice *uint256.Int
	threshold   uint64
	seen        *lru.Cache[common.Hash, struct{}]
	evHandler   EventHandler

	wire  *pool
	local *pool

	best     database.Block
	view     *world.Track
	receipts map[common.Hash]database.Receipt
}

// New constructs the pending state on top of the current head.
func New(cfg Config) (*Pending, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	size := cfg.SeenCacheSize
	if size <= 0 {
		size = 100_000
	}

	seen, err := lru.New[common.Hash, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("seen cache: %w", err)
	}

	threshold := cfg.OutdatedThreshold
	if threshold == 0 {
		threshold = 3
	}

	minGasPrice := cfg.MinGasPrice
	if minGasPrice == nil {
		minGasPrice = new(uint256.Int)
	}

	best, head := cfg.Chain.HeadState()

	p := Pending{
		chain:       cfg.Chain,
		minGasPrice: minGasPrice,
		threshold:   threshold,
		seen:        seen,
		evHandler:   ev,
		wire:        newPool(),
		local:       newPool(),
		best:        best,
		view:        head.StartTracking(),
		receipts:    make(map[common.Hash]database.Receipt),
	}

	return &p, nil
}

// =============================================================================

// AddWire admits transactions received from the network. The transactions
// that were admitted are returned.
func (p *Pending) AddWire(txs ...database.SignedTx) []database.SignedTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	var admitted []database.SignedTx
	for _, tx := range txs {
		if err := p.admit(tx, false); err != nil {
			continue
		}
		admitted = append(admitted, tx)
	}

	p.updateGauges()

	return admitted
}

// AddLocal admits a transaction submitted to this node. The reason the
// transaction was not admitted is returned.
func (p *Pending) AddLocal(tx database.SignedTx) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	defer p.updateGauges()

	return p.admit(tx, true)
}

// admit checks and applies the transaction to the pending state before
// adding it to the pool. A hash is only remembered as seen once the outcome
// can't change: the transaction was admitted or its signature is bad. A
// transaction declined by the current state can be offered again later.
func (p *Pending) admit(tx database.SignedTx, local bool) error {
	hash := tx.Hash()

	if p.seen.Contains(hash) || p.wire.contains(hash) || p.local.contains(hash) {
		return ErrKnownTx
	}

	if err := tx.Validate(); err != nil {
		p.seen.Add(hash, struct{}{})
		p.evHandler("pending: admit: %s: tx[%s]: %s", EventDropped, hash, err)
		return err
	}

	if tx.GasPrice.Lt(p.minGasPrice) {
		p.evHandler("pending: admit: %s: tx[%s]: %s", EventDropped, hash, ErrUnderpriced)
		return ErrUnderpriced
	}

	from, err := tx.FromAddress()
	if err != nil {
		p.seen.Add(hash, struct{}{})
		p.evHandler("pending: admit: %s: tx[%s]: %s", EventDropped, hash, err)
		return err
	}

	if err := p.apply(tx); err != nil {
		p.evHandler("pending: admit: %s: tx[%s]: %s", EventDropped, hash, err)
		return err
	}
	p.seen.Add(hash, struct{}{})

	to := p.wire
	if local {
		to = p.local
	}
	to.upsert(entry{tx: tx, hash: hash, from: from, blockNumber: p.best.Number(), local: local})

	p.evHandler("pending: admit: %s: tx[%s]: from[%s]: nonce[%d]", EventNewPending, hash, from, tx.Nonce)
	p.evHandler("pending: admit: %s: tx[%s]", EventPending, hash)

	return nil
}

// apply runs the transaction against the pending state and keeps the
// receipt.
func (p *Pending) apply(tx database.SignedTx) error {
	sum, err := p.chain.Executor().Apply(p.view, tx, executor.Context{Block: p.chain.NextBlockContext()})
	if err != nil {
		return err
	}

	p.receipts[tx.Hash()] = sum.Receipt
	return nil
}

// =============================================================================

// Reconcile updates the pending state for a new canonical head. Included
// transactions are removed, outdated wire transactions are dropped, the
// transactions of abandoned blocks return to the wire list, and the rest are
// replayed on a fresh checkpoint of the head.
func (p *Pending) Reconcile(blk database.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evHandler("pending: Reconcile: started: blk[%s]", blk.Header)
	defer p.evHandler("pending: Reconcile: completed: blk[%s]: wire[%d]: local[%d]", blk.Header, p.wire.count(), p.local.count())

	adopted := []database.Block{blk}
	var abandoned []database.Block

	if blk.Header.ParentHash != p.best.Hash() && blk.Hash() != p.best.Hash() {
		var err error
		abandoned, adopted, err = p.chain.Fork(p.best.Hash(), blk.Hash())
		if err != nil {
			p.evHandler("pending: Reconcile: ERROR: fork: %s", err)
			abandoned, adopted = nil, []database.Block{blk}
		}
	}

	included := make(map[common.Hash]struct{})
	for _, b := range adopted {
		for _, tx := range b.Transactions {
			included[tx.Hash()] = struct{}{}
		}
	}

	// Transactions of abandoned blocks that the new chain did not include
	// are pending again.
	for _, b := range abandoned {
		for _, tx := range b.Transactions {
			hash := tx.Hash()
			if _, exists := included[hash]; exists || p.local.contains(hash) {
				continue
			}

			from, err := tx.FromAddress()
			if err != nil {
				continue
			}

			p.wire.upsert(entry{tx: tx, hash: hash, from: from, blockNumber: blk.Number()})
			p.evHandler("pending: Reconcile: %s: tx[%s]: returned from abandoned blk[%s]", EventNewPending, hash, b.Header)
		}
	}

	for hash := range included {
		_, inWire := p.wire.delete(hash)
		_, inLocal := p.local.delete(hash)
		if inWire || inLocal {
			p.evHandler("pending: Reconcile: %s: tx[%s]", EventIncluded, hash)
		}
	}

	for _, e := range p.wire.ordered() {
		if blk.Number() > e.blockNumber && blk.Number()-e.blockNumber > p.threshold {
			p.wire.delete(e.hash)
			p.evHandler("pending: Reconcile: %s: tx[%s]: outdated: received[%d]", EventDropped, e.hash, e.blockNumber)
		}
	}

	p.replay()
	p.updateGauges()
	metrics.PendingReconciles.Inc()
}

// replay rebuilds the pending state from a fresh checkpoint of the head.
// Both pools are replayed as one list in sender and nonce order.
// Transactions that no longer apply are dropped.
func (p *Pending) replay() {
	best, head := p.chain.HeadState()

	p.best = best
	p.view = head.StartTracking()
	p.receipts = make(map[common.Hash]database.Receipt)

	for _, e := range merge(p.local, p.wire) {
		if err := p.apply(e.tx); err != nil {
			p.poolOf(e).delete(e.hash)
			p.evHandler("pending: replay: %s: tx[%s]: %s", EventDropped, e.hash, err)
			continue
		}

		p.evHandler("pending: replay: %s: tx[%s]", EventPending, e.hash)
	}
}

// poolOf returns the pool holding the entry.
func (p *Pending) poolOf(e entry) *pool {
	if e.local {
		return p.local
	}
	return p.wire
}

// =============================================================================

// Count returns the number of pending transactions.
func (p *Pending) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.wire.count() + p.local.count()
}

// Txs returns the pending transactions ordered by sender and nonce.
func (p *Pending) Txs() []database.SignedTx {
	p.mu.RLock()
	defer p.mu.RUnlock()

	list := merge(p.local, p.wire)

	txs := make([]database.SignedTx, len(list))
	for i, e := range list {
		txs[i] = e.tx
	}

	return txs
}

// PickBest returns up to howMany transactions for the next block ordered by
// gas price while respecting nonce order. Passing -1 returns all of them.
func (p *Pending) PickBest(howMany int) []database.SignedTx {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return selectBest(merge(p.local, p.wire), howMany)
}

// Account returns the account as seen by the pending state.
func (p *Pending) Account(addr common.Address) (world.Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.view.Account(addr)
}

// Receipt returns the speculative receipt of a pending transaction.
func (p *Pending) Receipt(hash common.Hash) (database.Receipt, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rcpt, exists := p.receipts[hash]
	return rcpt, exists
}

// Best returns the block the pending state is built on.
func (p *Pending) Best() database.Block {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.best
}

func (p *Pending) updateGauges() {
	metrics.PendingTxs.WithLabelValues("wire").Set(float64(p.wire.count()))
	metrics.PendingTxs.WithLabelValues("local").Set(float64(p.local.count()))
}
