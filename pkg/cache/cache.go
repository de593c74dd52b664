// Package cache stores extracted PDF text in badger so that re-running an
// extraction with a different profile or case mode skips the PDF parse.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/phuslu/log"
)

const keyPrefix = "text:"

// Entry is one cached extraction.
type Entry struct {
	Text      string    `json:"text"`
	PageCount int       `json:"page_count"`
	Warnings  []string  `json:"warnings,omitempty"`
	Source    string    `json:"source,omitempty"`
	StoredAt  time.Time `json:"stored_at"`
}

// TextCache is a badger-backed store of Entries keyed by content hash.
type TextCache struct {
	db *badger.DB
}

// Open opens (or creates) a cache in dir. Badger's own log lines go to
// logger at debug level; a nil logger silences them.
func Open(dir string, logger *log.Logger) (*TextCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	opts := badger.DefaultOptions(dir).WithLogger(newBadgerLogger(logger))
	return open(opts)
}

// OpenInMemory opens a cache that lives only as long as the process.
func OpenInMemory() (*TextCache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*TextCache, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger cache: %w", err)
	}
	return &TextCache{db: db}, nil
}

// Key derives the cache key for a document from its content and the
// extraction options that affect the text.
func Key(content []byte, options ...string) string {
	h := sha256.New()
	h.Write(content)
	for _, o := range options {
		h.Write([]byte{0})
		h.Write([]byte(o))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry for key. The boolean is false on a miss.
func (c *TextCache) Get(key string) (*Entry, bool, error) {
	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &entry)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return &entry, true, nil
}

// Put stores an entry under key, stamping StoredAt when unset.
func (c *TextCache) Put(key string, entry *Entry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	})
}

// Count returns the number of cached entries.
func (c *TextCache) Count() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear removes every entry.
func (c *TextCache) Clear() error {
	return c.db.DropPrefix([]byte(keyPrefix))
}

// Close releases the underlying database.
func (c *TextCache) Close() error {
	return c.db.Close()
}

// badgerLogger forwards badger's printf-style logging to phuslu/log.
type badgerLogger struct {
	logger *log.Logger
}

func newBadgerLogger(logger *log.Logger) badger.Logger {
	if logger == nil {
		return nil
	}
	return badgerLogger{logger: logger}
}

func (l badgerLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Str("component", "badger").Msg(trimLine(format, v))
}

func (l badgerLogger) Warningf(format string, v ...interface{}) {
	l.logger.Warn().Str("component", "badger").Msg(trimLine(format, v))
}

func (l badgerLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug().Str("component", "badger").Msg(trimLine(format, v))
}

func (l badgerLogger) Debugf(format string, v ...interface{}) {
	l.logger.Trace().Str("component", "badger").Msg(trimLine(format, v))
}

func trimLine(format string, v []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, v...), "\n")
}
