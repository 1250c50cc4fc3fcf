package pow

import (
	"context"
	"math/rand/v2"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"golang.org/x/sync/errgroup"
)

// Seal searches for a nonce that solves the work for the header using the
// specified number of goroutines. The first solution found is returned and
// the remaining searches are cancelled.
func Seal(ctx context.Context, header database.BlockHeader, threads int, ev func(v string, args ...any)) (database.BlockHeader, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	if threads < 1 {
		threads = 1
	}

	boundary := Boundary(header.Difficulty)
	if boundary == nil {
		return database.BlockHeader{}, errInvalidDifficulty
	}

	ev("pow: Seal: MINING: started: blk[%d]: threads[%d]", header.Number, threads)
	defer ev("pow: Seal: MINING: completed: blk[%d]", header.Number)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan database.BlockHeader, 1)
	start := rand.Uint64()

	g, ctx := errgroup.WithContext(ctx)
	for i := range threads {
		g.Go(func() error {
			h := header
			var attempts uint64
			for nonce := start + uint64(i); ; nonce += uint64(threads) {
				attempts++
				if attempts%1_000 == 0 && ctx.Err() != nil {
					return nil
				}

				h.Nonce = database.EncodeNonce(nonce)
				hash, err := Hash(h)
				if err != nil {
					return err
				}

				if hash.Big().Cmp(boundary) <= 0 {
					select {
					case found <- h:
						ev("pow: Seal: MINING: SOLVED: blk[%d]: nonce[%d]: attempts[%d]", h.Number, nonce, attempts)
					default:
					}
					cancel()
					return nil
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return database.BlockHeader{}, err
	}

	select {
	case h := <-found:
		return h, nil
	default:
		ev("pow: Seal: MINING: CANCELLED: blk[%d]", header.Number)
		return database.BlockHeader{}, context.Cause(ctx)
	}
}
