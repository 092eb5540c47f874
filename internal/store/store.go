// Package store is the durable side of the relay: users, the ordered
// message log, and the delivered/seen flags, all kept in badger.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

var (
	ErrUsernameTaken = errors.New("username taken")
	ErrNotFound      = errors.New("not found")
	ErrPersistence   = errors.New("persistence unavailable")
)

type Store struct {
	db  *badger.DB
	log *slog.Logger
	seq *seqGenerator
}

// Open opens (or creates) the badger database under dir.
func Open(dir string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	return open(opts, log)
}

// OpenInMemory backs the store with a throwaway in-memory badger
// instance. Used by tests and when no DATA_DIR is configured.
func OpenInMemory(log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	return open(opts, log)
}

func open(opts badger.Options, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, log: log, seq: newSeqGenerator()}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Key layout. The zero-padded timestamp makes lexicographic iteration
// chronological within a conversation prefix.
func userIDKey(id string) []byte {
	return []byte("user:id:" + id)
}

func userNameKey(username string) []byte {
	return []byte("user:name:" + strings.ToLower(username))
}

func msgKey(convKey string, createdAt int64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", convKey, createdAt))
}

func msgPrefix(convKey string) []byte {
	return []byte("msg:" + convKey + ":")
}

func msgRefKey(messageID string) []byte {
	return []byte("msgref:" + messageID)
}

func convIdxKey(userID, partnerID string) []byte {
	return []byte("conv:" + userID + ":" + partnerID)
}

func persistErr(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
