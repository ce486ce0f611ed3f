// Copyright © 2018 One Concern

// Package catalog keeps track of archived entries.
//
// The catalog is loaded from the object store at start, kept in memory as a
// radix tree indexed by path, and flushed back as a single encrypted object.
package catalog

import (
	"context"
	"fmt"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/coldstore/pkg/catalog/status"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/oneconcern/coldstore/pkg/storage"
	storagestatus "github.com/oneconcern/coldstore/pkg/storage/status"
	"go.uber.org/zap"
)

// DefaultKey is the object key of the persisted catalog
const DefaultKey = "metadata.catalog"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Codec seals the persisted catalog
type Codec interface {
	Encode([]byte) ([]byte, error)
	Decode([]byte) ([]byte, error)
}

// Catalog of archived entries, indexed by path.
//
// A Catalog is safe for concurrent use. Inserts are serialized.
type Catalog struct {
	store storage.Store
	codec Codec
	key   string
	l     *zap.Logger

	mu   sync.RWMutex
	tree *iradix.Tree
}

// Option for the catalog
type Option func(*Catalog)

// Logger for the catalog
func Logger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.l = l
		}
	}
}

// Key overrides the object key of the persisted catalog
func Key(key string) Option {
	return func(c *Catalog) {
		if key != "" {
			c.key = key
		}
	}
}

// New builds an empty catalog persisted on some store
func New(store storage.Store, codec Codec, opts ...Option) *Catalog {
	c := &Catalog{
		store: store,
		codec: codec,
		key:   DefaultKey,
		l:     zap.NewNop(),
		tree:  iradix.New(),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

func (c *Catalog) snapshot() *iradix.Tree {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree
}

// Exists tells if some entry is recorded for this path
func (c *Catalog) Exists(path string) bool {
	_, ok := c.snapshot().Get([]byte(path))
	return ok
}

// LookupExact retrieves the entry for a path
func (c *Catalog) LookupExact(path string) (Entry, bool) {
	v, ok := c.snapshot().Get([]byte(path))
	if !ok {
		return Entry{}, false
	}
	return v.(Entry).normalize(), true
}

// LookupPrefix retrieves all entries with a path starting with prefix, ordered by path
func (c *Catalog) LookupPrefix(prefix string) []Entry {
	var entries []Entry
	c.snapshot().Root().WalkPrefix([]byte(prefix), func(_ []byte, v interface{}) bool {
		entries = append(entries, v.(Entry).normalize())
		return false
	})
	return entries
}

// Len is the number of recorded entries
func (c *Catalog) Len() int {
	return c.snapshot().Len()
}

// Insert records a new entry. Existing entries are never overwritten.
func (c *Catalog) Insert(entry Entry) error {
	entry = entry.normalize()
	if err := entry.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tree.Get([]byte(entry.Path)); exists {
		return status.ErrAlreadyExists.WrapMessage(entry.Path)
	}
	c.tree, _, _ = c.tree.Insert([]byte(entry.Path), entry)
	return nil
}

// Load replaces the working set with the persisted catalog.
//
// A missing catalog is not an error: this is a first run, and the catalog is left empty.
func (c *Catalog) Load(ctx context.Context) error {
	token, err := storage.ReadAll(ctx, c.store, c.key)
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotExists) {
			c.l.Warn("no catalog found, starting from an empty one",
				zap.String("key", c.key), zap.Stringer("store", c.store))
			c.mu.Lock()
			c.tree = iradix.New()
			c.mu.Unlock()
			return nil
		}
		return status.ErrLoad.Wrap(err)
	}

	plain, err := c.codec.Decode(token)
	if err != nil {
		return status.ErrLoad.Wrap(err)
	}

	var doc document
	if err = json.Unmarshal(plain, &doc); err != nil {
		return status.ErrLoad.Wrap(fmt.Errorf("malformed catalog: %w", err))
	}
	if doc.Version != documentVersion {
		return status.ErrLoad.WrapMessage(fmt.Sprintf("unsupported catalog version %d", doc.Version))
	}

	txn := iradix.New().Txn()
	for _, r := range doc.Entries {
		entry, err := fromRecord(r)
		if err != nil {
			return status.ErrLoad.Wrap(err)
		}
		if _, dupe := txn.Insert([]byte(entry.Path), entry); dupe {
			return status.ErrLoad.Wrap(status.ErrInvalidEntry.WrapMessage(fmt.Sprintf("duplicate path %q", entry.Path)))
		}
	}
	tree := txn.Commit()

	c.mu.Lock()
	c.tree = tree
	c.mu.Unlock()

	c.l.Info("catalog loaded", zap.Int("entries", tree.Len()), zap.Stringer("store", c.store))
	return nil
}

// Flush persists all entries as a single sealed object
func (c *Catalog) Flush(ctx context.Context) error {
	tree := c.snapshot()
	doc := document{
		Version: documentVersion,
		Entries: make([]record, 0, tree.Len()),
	}
	tree.Root().Walk(func(_ []byte, v interface{}) bool {
		doc.Entries = append(doc.Entries, toRecord(v.(Entry)))
		return false
	})

	plain, err := json.Marshal(doc)
	if err != nil {
		return status.ErrFlush.Wrap(err)
	}
	token, err := c.codec.Encode(plain)
	if err != nil {
		return status.ErrFlush.Wrap(err)
	}
	if err = storage.PutBytes(ctx, c.store, c.key, token); err != nil {
		return status.ErrFlush.Wrap(err)
	}

	c.l.Info("catalog flushed", zap.Int("entries", len(doc.Entries)), zap.Stringer("store", c.store))
	return nil
}
