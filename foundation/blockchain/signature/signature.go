// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// recoveryOffset is added to the recovery id so the V value on the wire is
// either 27 or 28, the same way Ethereum encodes frontier signatures.
const recoveryOffset = 27

// ErrInvalidSignature is returned when the signature values fail validation.
var ErrInvalidSignature = errors.New("invalid signature")

// =============================================================================

// Sign uses the specified private key to sign the digest.
func Sign(digest common.Hash, privateKey *ecdsa.PrivateKey) (v, r, s *big.Int, err error) {

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return nil, nil, nil, err
	}

	// Extract the public key from the digest and the signature.
	publicKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return nil, nil, nil, err
	}

	// Check the public key extracted from the digest and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), digest[:], rs) {
		return nil, nil, nil, ErrInvalidSignature
	}

	// Convert the 65 byte signature into the [R|S|V] format.
	v, r, s = toSignatureValues(sig)

	return v, r, s, nil
}

// VerifySignature verifies the signature values are in range. Frontier rules
// apply so signatures in the upper half of the curve order are accepted.
func VerifySignature(v, r, s *big.Int) error {
	if v == nil || r == nil || s == nil {
		return ErrInvalidSignature
	}

	// Check the recovery id is either 0 or 1.
	if !v.IsUint64() {
		return errors.New("invalid recovery id")
	}
	uintV := v.Uint64() - recoveryOffset
	if uintV != 0 && uintV != 1 {
		return errors.New("invalid recovery id")
	}

	// Check the signature values are valid.
	if !crypto.ValidateSignatureValues(byte(uintV), r, s, false) {
		return ErrInvalidSignature
	}

	return nil
}

// FromAddress extracts the address for the account that signed the digest.
func FromAddress(digest common.Hash, v, r, s *big.Int) (common.Address, error) {
	if err := VerifySignature(v, r, s); err != nil {
		return common.Address{}, err
	}

	// Convert the [R|S|V] format into the original 65 bytes.
	sig := ToSignatureBytes(v, r, s)

	// Capture the public key associated with this digest and signature.
	publicKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, err
	}

	return crypto.PubkeyToAddress(*publicKey), nil
}

// SignatureString returns the signature as a string.
func SignatureString(v, r, s *big.Int) string {
	sig := ToSignatureBytes(v, r, s)
	sig[64] = byte(v.Uint64())

	return hexutil.Encode(sig)
}

// ToVRSFromHexSignature converts a hex representation of the signature into
// its R, S and V parts.
func ToVRSFromHexSignature(sigStr string) (v, r, s *big.Int, err error) {
	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(sig) != crypto.SignatureLength {
		return nil, nil, nil, ErrInvalidSignature
	}

	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64]})

	return v, r, s, nil
}

// ToSignatureBytes converts the r, s, v values into a slice of bytes
// with the removal of the recovery offset.
func ToSignatureBytes(v, r, s *big.Int) []byte {
	sig := make([]byte, crypto.SignatureLength)

	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = byte(v.Uint64() - recoveryOffset)

	return sig
}

// =============================================================================

// toSignatureValues converts the signature into the r, s, v values.
func toSignatureValues(sig []byte) (v, r, s *big.Int) {
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:64])
	v = new(big.Int).SetBytes([]byte{sig[64] + recoveryOffset})

	return v, r, s
}
