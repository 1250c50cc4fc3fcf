package pending

import (
	"sort"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common"
)

// entry is a transaction held in a pool with the values needed to order and
// expire it.
type entry struct {
	tx          database.SignedTx
	hash        common.Hash
	from        common.Address
	blockNumber uint64 // Head number when the transaction was received.
	local       bool   // Submitted to this node rather than received from the network.
}

// pool represents a set of transactions keyed by hash. A pool is not safe
// for concurrent use, the Pending value guards it.
type pool struct {
	entries map[common.Hash]entry
}

func newPool() *pool {
	return &pool{
		entries: make(map[common.Hash]entry),
	}
}

// count returns the current number of transactions in the pool.
func (p *pool) count() int {
	return len(p.entries)
}

// upsert adds or replaces a transaction in the pool.
func (p *pool) upsert(e entry) {
	p.entries[e.hash] = e
}

// delete removes a transaction from the pool.
func (p *pool) delete(hash common.Hash) (entry, bool) {
	e, exists := p.entries[hash]
	if exists {
		delete(p.entries, hash)
	}
	return e, exists
}

// contains reports whether the transaction is in the pool.
func (p *pool) contains(hash common.Hash) bool {
	_, exists := p.entries[hash]
	return exists
}

// ordered returns the transactions sorted by sender and then nonce so a
// sender's transactions are applied in the order they must execute.
func (p *pool) ordered() []entry {
	list := make([]entry, 0, len(p.entries))
	for _, e := range p.entries {
		list = append(list, e)
	}

	sort.Sort(bySenderNonce(list))

	return list
}

// merge returns the transactions of all the pools sorted by sender and then
// nonce. A sender's transactions may be split across pools and must still
// be applied in nonce order.
func merge(pools ...*pool) []entry {
	var n int
	for _, p := range pools {
		n += p.count()
	}

	list := make([]entry, 0, n)
	for _, p := range pools {
		for _, e := range p.entries {
			list = append(list, e)
		}
	}

	sort.Sort(bySenderNonce(list))

	return list
}

// =============================================================================

// bySenderNonce provides sorting support by sender and nonce.
type bySenderNonce []entry

// Len returns the number of transactions in the list.
func (bs bySenderNonce) Len() int {
	return len(bs)
}

// Less orders by sender, then by nonce in ascending order to keep the
// transactions in the right order of processing.
func (bs bySenderNonce) Less(i, j int) bool {
	if c := bs[i].from.Cmp(bs[j].from); c != 0 {
		return c < 0
	}
	if bs[i].tx.Nonce != bs[j].tx.Nonce {
		return bs[i].tx.Nonce < bs[j].tx.Nonce
	}
	return bs[i].hash.Cmp(bs[j].hash) < 0
}

// Swap moves transactions in the order of the sender and nonce.
func (bs bySenderNonce) Swap(i, j int) {
	bs[i], bs[j] = bs[j], bs[i]
}

// byGasPrice provides sorting support by the transaction gas price.
type byGasPrice []entry

// Len returns the number of transactions in the list.
func (bg byGasPrice) Len() int {
	return len(bg)
}

// Less orders by gas price in descending order to pick the transactions
// that provide the best reward.
func (bg byGasPrice) Less(i, j int) bool {
	if c := bg[i].tx.GasPrice.Cmp(bg[j].tx.GasPrice); c != 0 {
		return c > 0
	}
	return bg[i].from.Cmp(bg[j].from) < 0
}

// Swap moves transactions in the order of the gas price.
func (bg byGasPrice) Swap(i, j int) {
	bg[i], bg[j] = bg[j], bg[i]
}

// =============================================================================

// selectBest returns the transactions with the best gas price while
// respecting the nonce order for each sender. Passing -1 for howMany returns
// every transaction.
func selectBest(list []entry, howMany int) []database.SignedTx {
	if howMany < 0 {
		howMany = len(list)
	}

	// Group the transactions by sender. The list is already in nonce order.
	var senders []common.Address
	m := make(map[common.Address][]entry)
	for _, e := range list {
		if _, exists := m[e.from]; !exists {
			senders = append(senders, e.from)
		}
		m[e.from] = append(m[e.from], e)
	}

	// Pick the first transaction for each sender. Each iteration represents
	// a new row of selections. Keep doing that until all the transactions
	// have been selected.
	var rows [][]entry
	for {
		var row []entry
		for _, from := range senders {
			if len(m[from]) > 0 {
				row = append(row, m[from][0])
				m[from] = m[from][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	// Sort each row by gas price unless we will take all transactions from
	// that row anyway. Keep pulling transactions from each row until the
	// amount is fulfilled or there are no more transactions.
	final := []database.SignedTx{}
done:
	for _, row := range rows {
		need := howMany - len(final)
		if len(row) > need {
			sort.Sort(byGasPrice(row))
			row = row[:need]
		}

		for _, e := range row {
			final = append(final, e.tx)
		}

		if len(final) == howMany {
			break done
		}
	}

	return final
}
