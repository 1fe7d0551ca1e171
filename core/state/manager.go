package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"fall/core/types"
	"fall/crypto"
	"fall/storage"
)

// Manager reads and writes protocol records. Keys are Keccak256 digests of a
// readable prefix plus identifiers; values are RLP encoded.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	exchangePrefix = []byte("exchange:")
	poolPrefix     = []byte("pool:")
	lenderPrefix   = []byte("lender:")
	borrowerPrefix = []byte("borrower:")
	balancePrefix  = []byte("balance:")
	supplyPrefix   = []byte("supply:")

	poolListKey   = ethcrypto.Keccak256([]byte("pool-list"))
	lastHeightKey = ethcrypto.Keccak256([]byte("clock:last-height"))
)

func hashKey(prefix []byte, parts ...[]byte) []byte {
	chunks := make([][]byte, 0, 2*len(parts)+1)
	chunks = append(chunks, prefix)
	for i, part := range parts {
		if i > 0 {
			chunks = append(chunks, []byte{':'})
		}
		chunks = append(chunks, part)
	}
	return ethcrypto.Keccak256(chunks...)
}

func exchangeKey(id string) []byte { return hashKey(exchangePrefix, []byte(id)) }

func poolKey(id types.PoolID) []byte { return hashKey(poolPrefix, id[:]) }

func lenderKey(pool types.PoolID, addr []byte) []byte { return hashKey(lenderPrefix, pool[:], addr) }

func borrowerKey(pool types.PoolID, addr []byte) []byte {
	return hashKey(borrowerPrefix, pool[:], addr)
}

func balanceKey(asset string, addr []byte) []byte {
	return hashKey(balancePrefix, []byte(asset), addr)
}

func supplyKey(asset string) []byte { return hashKey(supplyPrefix, []byte(asset)) }

// load decodes the value at key into out. It reports false when the key is
// absent.
func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("decode state value: %w", err)
	}
	return true, nil
}

func (m *Manager) store(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("encode state value: %w", err)
	}
	return m.db.Put(key, encoded)
}

// Exchange returns the exchange with the given ID or nil when unknown.
func (m *Manager) Exchange(id string) (*types.Exchange, error) {
	exchange := new(types.Exchange)
	ok, err := m.load(exchangeKey(strings.TrimSpace(id)), exchange)
	if err != nil || !ok {
		return nil, err
	}
	return exchange, nil
}

func (m *Manager) PutExchange(exchange *types.Exchange) error {
	if exchange == nil || strings.TrimSpace(exchange.ID) == "" {
		return fmt.Errorf("exchange id must not be empty")
	}
	return m.store(exchangeKey(exchange.ID), exchange)
}

// Pool returns the pool record or nil when unknown.
func (m *Manager) Pool(id types.PoolID) (*types.Pool, error) {
	pool := new(types.Pool)
	ok, err := m.load(poolKey(id), pool)
	if err != nil || !ok {
		return nil, err
	}
	return pool, nil
}

// PutPool persists the pool and records it in the pool index.
func (m *Manager) PutPool(pool *types.Pool) error {
	if pool == nil || pool.ID.IsZero() {
		return fmt.Errorf("pool id must not be empty")
	}
	list, err := m.PoolIDs()
	if err != nil {
		return err
	}
	idx := sort.Search(len(list), func(i int) bool { return list[i].String() >= pool.ID.String() })
	if idx == len(list) || list[idx] != pool.ID {
		list = append(list, types.PoolID{})
		copy(list[idx+1:], list[idx:])
		list[idx] = pool.ID
		if err := m.store(poolListKey, list); err != nil {
			return err
		}
	}
	return m.store(poolKey(pool.ID), pool)
}

// PoolIDs lists every known pool ordered by rendered identifier.
func (m *Manager) PoolIDs() ([]types.PoolID, error) {
	var list []types.PoolID
	if _, err := m.load(poolListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// LenderPosition returns the open lending position or nil.
func (m *Manager) LenderPosition(pool types.PoolID, lender crypto.Address) (*types.LenderPosition, error) {
	position := new(types.LenderPosition)
	ok, err := m.load(lenderKey(pool, lender.Bytes()), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (m *Manager) PutLenderPosition(position *types.LenderPosition) error {
	if position == nil || len(position.Lender) == 0 {
		return fmt.Errorf("lender position requires a lender")
	}
	return m.store(lenderKey(position.Pool, position.Lender), position)
}

func (m *Manager) DeleteLenderPosition(pool types.PoolID, lender crypto.Address) error {
	return m.db.Delete(lenderKey(pool, lender.Bytes()))
}

// BorrowPosition returns the borrow position or nil.
func (m *Manager) BorrowPosition(pool types.PoolID, borrower crypto.Address) (*types.BorrowPosition, error) {
	position := new(types.BorrowPosition)
	ok, err := m.load(borrowerKey(pool, borrower.Bytes()), position)
	if err != nil || !ok {
		return nil, err
	}
	return position, nil
}

func (m *Manager) PutBorrowPosition(position *types.BorrowPosition) error {
	if position == nil || len(position.Borrower) == 0 {
		return fmt.Errorf("borrow position requires a borrower")
	}
	return m.store(borrowerKey(position.Pool, position.Borrower), position)
}

func (m *Manager) DeleteBorrowPosition(pool types.PoolID, borrower crypto.Address) error {
	return m.db.Delete(borrowerKey(pool, borrower.Bytes()))
}

// Balance returns the holder's balance of asset.
func (m *Manager) Balance(asset string, holder crypto.Address) (uint64, error) {
	var amount uint64
	if _, err := m.load(balanceKey(asset, holder.Bytes()), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (m *Manager) SetBalance(asset string, holder crypto.Address, amount uint64) error {
	if len(holder.Bytes()) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == 0 {
		return m.db.Delete(balanceKey(asset, holder.Bytes()))
	}
	return m.store(balanceKey(asset, holder.Bytes()), amount)
}

// Supply returns the total issued amount of asset.
func (m *Manager) Supply(asset string) (uint64, error) {
	var amount uint64
	if _, err := m.load(supplyKey(asset), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (m *Manager) SetSupply(asset string, amount uint64) error {
	return m.store(supplyKey(asset), amount)
}

// LastHeight returns the highest block height any committed operation observed.
func (m *Manager) LastHeight() (uint64, error) {
	var height uint64
	if _, err := m.load(lastHeightKey, &height); err != nil {
		return 0, err
	}
	return height, nil
}

func (m *Manager) SetLastHeight(height uint64) error {
	return m.store(lastHeightKey, height)
}
