// Package journal keeps an append-only log of committed engine operations.
// Every entry carries a blake3 digest chained to its predecessor so a copy of
// the log can be checked for gaps or edits.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"
)

var (
	ErrDSNRequired  = errors.New("journal: dsn required")
	ErrBrokenChain  = errors.New("journal: digest chain broken")
	errNilJournal   = errors.New("journal: not configured")
	memoryDSN       = "file::memory:?cache=shared"
	postgresSchemes = []string{"postgres://", "postgresql://"}
)

// Entry is one committed operation.
type Entry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence  uint64    `gorm:"uniqueIndex;not null"`
	Operation string    `gorm:"index;not null"`
	Pool      string    `gorm:"index"`
	Actor     string    `gorm:"index"`
	Height    uint64    `gorm:"not null"`
	Detail    string
	Digest    string `gorm:"size:64;not null"`
	CreatedAt time.Time
}

// Recorder accepts committed operations.
type Recorder interface {
	Record(ctx context.Context, entry Entry) (Entry, error)
}

// Journal persists entries through gorm.
type Journal struct {
	db *gorm.DB

	mu       sync.Mutex
	sequence uint64
	last     string
}

// Open connects to dsn. postgres:// URLs use the postgres driver; anything
// else is a sqlite path, with ":memory:" mapped to a shared in-memory db.
func Open(dsn string) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrDSNRequired
	}
	var dialector gorm.Dialector
	switch {
	case hasPostgresScheme(trimmed):
		dialector = postgres.Open(trimmed)
	case trimmed == ":memory:":
		dialector = sqlite.Open(memoryDSN)
	default:
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errNilJournal
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	j := &Journal{db: db}
	var tail Entry
	err := db.Order("sequence desc").Limit(1).Take(&tail).Error
	switch {
	case err == nil:
		j.sequence, j.last = tail.Sequence, tail.Digest
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("journal: load tail: %w", err)
	}
	return j, nil
}

func hasPostgresScheme(dsn string) bool {
	lower := strings.ToLower(dsn)
	for _, scheme := range postgresSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// Record appends entry, assigning its ID, sequence and digest.
func (j *Journal) Record(ctx context.Context, entry Entry) (Entry, error) {
	if j == nil || j.db == nil {
		return Entry{}, errNilJournal
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Sequence = j.sequence + 1
	entry.Digest = Digest(j.last, entry)
	if err := j.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return Entry{}, fmt.Errorf("journal: insert: %w", err)
	}
	j.sequence, j.last = entry.Sequence, entry.Digest
	return entry, nil
}

// List returns up to limit entries after the given sequence, oldest first.
func (j *Journal) List(ctx context.Context, after uint64, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, errNilJournal
	}
	query := j.db.WithContext(ctx).Where("sequence > ?", after).Order("sequence asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return entries, nil
}

// Verify recomputes the digest chain over the whole journal.
func (j *Journal) Verify(ctx context.Context) error {
	entries, err := j.List(ctx, 0, 0)
	if err != nil {
		return err
	}
	prev := ""
	for i, entry := range entries {
		if entry.Sequence != uint64(i)+1 {
			return fmt.Errorf("%w: sequence %d at position %d", ErrBrokenChain, entry.Sequence, i)
		}
		if want := Digest(prev, entry); want != entry.Digest {
			return fmt.Errorf("%w: entry %d", ErrBrokenChain, entry.Sequence)
		}
		prev = entry.Digest
	}
	return nil
}

// Close releases the underlying connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Digest hashes an entry's content together with the previous digest.
func Digest(prev string, entry Entry) string {
	h := blake3.New(32, nil)
	var num [8]byte
	writeField := func(s string) {
		binary.BigEndian.PutUint64(num[:], uint64(len(s)))
		h.Write(num[:])
		h.Write([]byte(s))
	}
	writeField(prev)
	binary.BigEndian.PutUint64(num[:], entry.Sequence)
	h.Write(num[:])
	writeField(entry.Operation)
	writeField(entry.Pool)
	writeField(entry.Actor)
	binary.BigEndian.PutUint64(num[:], entry.Height)
	h.Write(num[:])
	writeField(entry.Detail)
	return hex.EncodeToString(h.Sum(nil))
}
