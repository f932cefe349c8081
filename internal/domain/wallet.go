package domain

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for strings that are not 32-byte base58.
var ErrInvalidAddress = errors.New("invalid address")

// ValidateAddress checks that addr is a well-formed on-chain address:
// base58, decoding to exactly 32 bytes. Both wallet keys and PDAs pass.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: %s decodes to %d bytes", ErrInvalidAddress, addr, len(raw))
	}
	return nil
}

// IsOnCurve reports whether a valid address lies on the ed25519 curve.
// Wallet keys are on-curve; program-derived addresses (multisig PDAs) are
// off-curve. Returns false for malformed input.
func IsOnCurve(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
