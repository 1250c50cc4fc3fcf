// Package pow implements the proof of work rules: the difficulty adjustment
// between a parent and its child and the check that a header's nonce solves
// the work for its difficulty.
package pow

import (
	"errors"
	"math/big"
	"slices"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Params holds the constants of the difficulty adjustment.
type Params struct {
	BoundDivisor      *big.Int // Fraction of the parent difficulty moved per block.
	DurationLimit     uint64   // Seconds under which a block raises the difficulty.
	MinimumDifficulty *big.Int // Floor for any difficulty.
	ExpPeriod         uint64   // Blocks per step of the exponential term.
}

// Frontier returns the parameters of the frontier release.
func Frontier() Params {
	return Params{
		BoundDivisor:      big.NewInt(2048),
		DurationLimit:     13,
		MinimumDifficulty: big.NewInt(131072),
		ExpPeriod:         100000,
	}
}

// errInvalidDifficulty is returned when a header can't be sealed.
var errInvalidDifficulty = errors.New("difficulty must be positive")

// two256 is 2^256, the numerator of the boundary.
var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// =============================================================================

// CalcDifficulty returns the difficulty the header must carry given its
// parent. The header's timestamp and number are used.
func CalcDifficulty(p Params, parent database.BlockHeader, header database.BlockHeader) *big.Int {
	quotient := new(big.Int).Div(parent.Difficulty, p.BoundDivisor)

	diff := new(big.Int)
	switch {
	case header.TimeStamp < parent.TimeStamp+p.DurationLimit:
		diff.Add(parent.Difficulty, quotient)
	default:
		diff.Sub(parent.Difficulty, quotient)
	}

	if diff.Cmp(p.MinimumDifficulty) < 0 {
		diff.Set(p.MinimumDifficulty)
	}

	if p.ExpPeriod > 0 {
		if periodCount := header.Number / p.ExpPeriod; periodCount > 1 {
			bomb := new(big.Int).Lsh(big.NewInt(1), uint(periodCount-2))
			diff.Add(diff, bomb)
		}
	}

	return diff
}

// Boundary returns 2^256 / difficulty. A nil or non-positive difficulty has
// no boundary and nil is returned.
func Boundary(difficulty *big.Int) *big.Int {
	if difficulty == nil || difficulty.Sign() <= 0 {
		return nil
	}

	return new(big.Int).Div(two256, difficulty)
}

// Hash computes the proof of work value of the header. The header encoding
// without the nonce is hashed, the little endian nonce is appended and the
// result hashed with keccak512, then the mix hash is appended and the
// whole hashed again.
func Hash(header database.BlockHeader) (common.Hash, error) {
	encoded, err := header.EncodeNoNonce()
	if err != nil {
		return common.Hash{}, err
	}
	hashNoNonce := crypto.Keccak256(encoded)

	nonce := header.Nonce
	reversed := slices.Clone(nonce[:])
	slices.Reverse(reversed)

	h := sha3.NewLegacyKeccak512()
	h.Write(hashNoNonce)
	h.Write(reversed)
	seed := h.Sum(nil)

	return crypto.Keccak256Hash(seed, header.MixHash.Bytes()), nil
}

// IsValid reports whether the header's proof of work value is within the
// boundary for its difficulty. It has no side effects.
func IsValid(header database.BlockHeader) bool {
	boundary := Boundary(header.Difficulty)
	if boundary == nil {
		return false
	}

	hash, err := Hash(header)
	if err != nil {
		return false
	}

	return hash.Big().Cmp(boundary) <= 0
}
