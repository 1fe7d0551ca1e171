package types

import (
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"

	"fall/crypto"
)

// PoolIDLength is the byte length of a pool identifier.
const PoolIDLength = 20

// PoolID identifies one trading pair under an exchange.
type PoolID [PoolIDLength]byte

var errPoolIDLength = errors.New("pool id must be 20 bytes")

// NewPoolID derives the identifier of the (assetA, assetB) pair under the
// exchange. The order of the assets matters.
func NewPoolID(exchange, assetA, assetB string) PoolID {
	digest := ethcrypto.Keccak256([]byte(exchange), []byte{0}, []byte(assetA), []byte{0}, []byte(assetB))
	var id PoolID
	copy(id[:], digest[:PoolIDLength])
	return id
}

// ParsePoolID decodes the base58 rendering produced by String.
func ParsePoolID(s string) (PoolID, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return PoolID{}, fmt.Errorf("invalid pool id: %w", err)
	}
	if len(raw) != PoolIDLength {
		return PoolID{}, errPoolIDLength
	}
	var id PoolID
	copy(id[:], raw)
	return id, nil
}

func (id PoolID) String() string {
	return base58.Encode(id[:])
}

func (id PoolID) IsZero() bool {
	return id == PoolID{}
}

func (id PoolID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *PoolID) UnmarshalText(text []byte) error {
	parsed, err := ParsePoolID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Pool is the accounting record for one trading pair. Reserve fields mirror
// the AMM vault. The lending counters replace receipt instrument supplies.
type Pool struct {
	ID       PoolID
	Exchange string
	AssetA   string
	AssetB   string

	ReserveA    uint64
	ReserveB    uint64
	ShareSupply uint64

	BorrowInterestHeight      uint64
	BorrowInterestAccumulator uint64
	ShareLendingHeight        uint64
	ShareLendingAccumulator   uint64

	TotalLent       uint64
	TotalBorrowed   uint64
	TotalCollateral uint64

	CreatedHeight uint64
}

// Clone returns a copy that can be mutated without affecting the receiver.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// ShareAssetPrefix prefixes the ledger asset holding a pool's liquidity shares.
const ShareAssetPrefix = "lp/"

// ShareAsset is the ledger asset used for liquidity shares of the pool.
func (p *Pool) ShareAsset() string {
	return ShareAssetPrefix + p.ID.String()
}

// IsShareAsset reports whether asset names liquidity shares. Shares only move
// through deposits and withdrawals, which keep ShareSupply in step.
func IsShareAsset(asset string) bool {
	return strings.HasPrefix(strings.TrimSpace(asset), ShareAssetPrefix)
}

// Vault holds the AMM reserves.
func (p *Pool) Vault() crypto.Address {
	return crypto.DeriveAddress([]byte("fall/amm-vault"), p.ID[:])
}

// LendingVault holds lent principal and posted collateral. It is kept apart
// from the AMM reserves.
func (p *Pool) LendingVault() crypto.Address {
	return crypto.DeriveAddress([]byte("fall/lending-vault"), p.ID[:])
}

// LockedLiquidity receives the minimum liquidity minted on pool creation.
// Nothing can sign for it, so those shares are never redeemable.
func (p *Pool) LockedLiquidity() crypto.Address {
	return crypto.DeriveAddress([]byte("fall/locked-liquidity"), p.ID[:])
}

// HasAsset reports whether the asset is one side of the pair.
func (p *Pool) HasAsset(asset string) bool {
	return asset == p.AssetA || asset == p.AssetB
}
