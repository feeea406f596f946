// Package store holds records in memory, grouped into named collections.
//
// Each collection keeps its records in insertion order. Writers are
// serialized behind a per-collection lock; Scan hands out a snapshot that
// later writes never modify.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/record"
)

// Direction of an ordering.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// OrderSpec names one field to sort by.
type OrderSpec struct {
	Field     string
	Direction Direction
}

func (o OrderSpec) String() string {
	if o.Direction == Descending {
		return "-" + o.Field
	}
	return "+" + o.Field
}

// CollectionOptions are the per-collection settings from configuration.
type CollectionOptions struct {
	Schema          *record.Schema
	DefaultOrdering *OrderSpec
}

type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
	options     map[string]CollectionOptions
}

type Option func(*Store) error

// WithCollection preconfigures the named collection.
func WithCollection(name string, opts CollectionOptions) Option {
	return func(s *Store) error {
		if name == "" {
			return fmt.Errorf("collection name cannot be empty")
		}
		if err := opts.Schema.Validate(); err != nil {
			return fmt.Errorf("collection %q: %w", name, err)
		}
		s.options[name] = opts
		return nil
	}
}

func New(options ...Option) (*Store, error) {
	s := &Store{
		collections: map[string]*Collection{},
		options:     map[string]CollectionOptions{},
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = newCollection(name, s.options[name])
		s.collections[name] = c
	}
	return c
}

// Lookup returns the named collection only if it already exists.
func (s *Store) Lookup(name string) (*Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	return c, ok
}

// Drop removes a collection and all of its records. Configured options are
// kept, so a later Collection call recreates it with the same schema.
func (s *Store) Drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, name)
}

func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Collection struct {
	name    string
	options CollectionOptions

	mu      sync.RWMutex
	records []record.Record
	byID    map[uuid.UUID]int
	nextSeq uint64
}

func newCollection(name string, opts CollectionOptions) *Collection {
	return &Collection{
		name:    name,
		options: opts,
		byID:    map[uuid.UUID]int{},
		nextSeq: 1,
	}
}

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Schema() *record.Schema {
	return c.options.Schema
}

// DefaultOrdering is the configured ordering, or nil for insertion order.
func (c *Collection) DefaultOrdering() *OrderSpec {
	return c.options.DefaultOrdering
}

// Insert assigns a fresh id and appends the record. Raw values are coerced
// through the collection schema; record.Value values pass through.
func (c *Collection) Insert(fields map[string]interface{}) (record.Record, error) {
	return c.InsertWithID(uuid.New(), fields)
}

// InsertWithID appends a record under a caller-chosen id, so that
// references loaded from elsewhere resolve. The id must be unused.
func (c *Collection) InsertWithID(id uuid.UUID, fields map[string]interface{}) (record.Record, error) {
	built, err := c.options.Schema.Build(fields)
	if err != nil {
		return record.Record{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[id]; exists {
		return record.Record{}, dexerror.New(
			dexerror.WithKind(dexerror.KindDuplicateID),
			dexerror.WithPublicMessage("record id already present"),
			dexerror.WithPublicData("namespace", c.name),
			dexerror.WithPublicData("id", id.String()),
		)
	}

	rec := record.New(c.name, id, c.nextSeq, built)
	c.nextSeq++

	// Snapshots are capped at their own length, so this append only ever
	// writes past what any snapshot can see.
	c.records = append(c.records, rec)
	c.byID[id] = len(c.records) - 1

	return rec, nil
}

// Scan returns every record in insertion order. Callers must not modify the
// returned slice in place.
func (c *Collection) Scan() []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.records[:len(c.records):len(c.records)]
}

func (c *Collection) Get(id uuid.UUID) (record.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byID[id]
	if !ok {
		return record.Record{}, dexerror.New(
			dexerror.WithKind(dexerror.KindRecordNotFound),
			dexerror.WithPublicMessage("no such record"),
			dexerror.WithPublicData("namespace", c.name),
			dexerror.WithPublicData("id", id.String()),
		)
	}
	return c.records[idx], nil
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}

// Clear removes all records. Sequence numbers keep increasing.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = nil
	c.byID = map[uuid.UUID]int{}
}
