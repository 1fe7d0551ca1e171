package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part of an encoded address.
type AddressPrefix string

const (
	FallPrefix AddressPrefix = "fall"
)

// AddressLength is the byte length of every identity handled by the ledger.
const AddressLength = 20

var errAddressLength = errors.New("address must be 20 bytes long")

// Address is a 20-byte identity paired with its bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic(errAddressLength)
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

// DeriveAddress hashes the supplied parts with Keccak256 and keeps the trailing
// 20 bytes. Custody accounts are derived this way so they have no private key.
func DeriveAddress(parts ...[]byte) Address {
	digest := crypto.Keccak256(parts...)
	return NewAddress(FallPrefix, digest[len(digest)-AddressLength:])
}

func (a Address) String() string {
	if len(a.bytes) == 0 {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	prefix := a.prefix
	if prefix == "" {
		prefix = FallPrefix
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address carries no bytes.
func (a Address) IsZero() bool {
	return len(a.bytes) == 0
}

func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.bytes, other.bytes)
}

// MarshalText renders the bech32 form so addresses can be embedded in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	addrStr = strings.TrimSpace(addrStr)
	if addrStr == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, errAddressLength
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// MustDecodeAddress is DecodeAddress for fixtures and constants.
func MustDecodeAddress(addrStr string) Address {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		panic(err)
	}
	return addr
}
