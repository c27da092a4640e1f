// Package ddbstore is a local DynamoDB item store backed by BadgerDB.
//
// It implements the item operations of the AWS SDK v2 client (PutItem,
// GetItem, DeleteItem and UpdateItem) for the expressions built by ddbsdk,
// and keeps an entry per secondary index for every item that carries that
// index's key attributes. Items without them are left out of the index,
// like in DynamoDB.
package ddbstore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/acksell/keyforge/dynamodb/ddbiface"
	"github.com/acksell/keyforge/dynamodb/table"
	"github.com/dgraph-io/badger/v4"
)

// ErrUnsupported is returned for expressions the store cannot evaluate.
var ErrUnsupported = errors.New("ddbstore: unsupported expression")

// Store is a DynamoDB-compatible item store backed by BadgerDB.
// It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	log    *slog.Logger
	tables map[string]*tableSchema
}

type tableSchema struct {
	definition table.TableDefinition
	encoder    keyEncoder
	indexes    []*indexSchema
}

type indexSchema struct {
	name    string
	encoder keyEncoder
}

var _ ddbiface.ItemClient = (*Store)(nil)

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives store and BadgerDB logs. If nil, logging is disabled.
	Logger *slog.Logger
}

// New opens a store holding items of the given tables.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	tables := make(map[string]*tableSchema, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := tables[def.Name]; exists {
			return nil, fmt.Errorf("table %q defined twice", def.Name)
		}
		tables[def.Name] = newTableSchema(def)
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{log: opts.Logger.With("component", "badger")})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	log.Debug("opened item store", "path", opts.Path, "inMemory", badgerOpts.InMemory, "tables", len(tables))
	return &Store{
		db:     db,
		log:    log,
		tables: tables,
	}, nil
}

func newTableSchema(def table.TableDefinition) *tableSchema {
	t := &tableSchema{
		definition: def,
		encoder:    keyEncoder{tableName: def.Name, keys: def.KeyDefinitions},
	}
	for _, gsi := range def.GSIs {
		t.indexes = append(t.indexes, &indexSchema{
			name:    gsi.Name,
			encoder: keyEncoder{tableName: def.Name, indexName: gsi.Name, keys: gsi.KeyDefinitions},
		})
	}
	for _, lsi := range def.LSIs {
		t.indexes = append(t.indexes, &indexSchema{
			name:    lsi.Name,
			encoder: keyEncoder{tableName: def.Name, indexName: lsi.Name, keys: def.LSIKeyDefinitions(lsi)},
		})
	}
	return t
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil {
		return nil, fmt.Errorf("table name is required")
	}
	t, ok := s.tables[*tableName]
	if !ok {
		return nil, fmt.Errorf("table not found: %s", *tableName)
	}
	return t, nil
}

func (t *tableSchema) index(name string) (*indexSchema, bool) {
	for _, idx := range t.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return nil, false
}

// badgerLogger routes BadgerDB logs to slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
