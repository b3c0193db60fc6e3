// Package ddblocal is a BadgerDB-backed stand-in for DynamoDB that
// implements the driver subset the storage facade uses: conditional
// put/update/delete, single-partition queries over the table and its
// GSIs, batch reads/writes, and atomic transactional writes.
//
// It understands only the expression shapes the facade generates
// (placeholder names/values, attribute_exists/attribute_not_exists,
// equality, begins_with, AND, and SET/REMOVE update clauses). Every
// facade and domain test runs against it; the seed CLI uses it for
// local mode.
package ddblocal

import (
	"bytes"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/rishabhxchoudhary/Personal-Budget-sub002/dynamodb/table"
)

// Options configures the underlying BadgerDB.
type Options struct {
	// Path is the database directory. Empty means in-memory.
	Path string
	// InMemory forces in-memory mode even when Path is set.
	InMemory bool
	// Logger for BadgerDB. Nil disables badger's own logging.
	Logger badger.Logger
}

// Store is the local DynamoDB implementation.
type Store struct {
	db     *badger.DB
	tables map[string]table.Definition
}

// New opens the store and registers the given table definitions.
func New(opts Options, defs ...table.Definition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("ddblocal: open badger: %w", err)
	}

	tables := make(map[string]table.Definition, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			db.Close()
			return nil, err
		}
		tables[def.Name] = def
	}
	return &Store{db: db, tables: tables}, nil
}

// Close releases the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getTable(name *string) (table.Definition, error) {
	if name == nil {
		return table.Definition{}, fmt.Errorf("ddblocal: table name is required")
	}
	def, ok := s.tables[*name]
	if !ok {
		return table.Definition{}, &types.ResourceNotFoundException{
			Message: ptr("Requested resource not found: Table: " + *name),
		}
	}
	return def, nil
}

// Badger key layout. 0x00 never occurs in key strings, so the encoding
// is prefix-safe and iterates in (pk, sk) resp. (gsipk, gsisk) order.
//
//	d <table> <pk> <sk>                    -> item
//	i <table> <gsi> <gpk> <gsk> <pk> <sk>  -> item copy
const keySep = 0x00

func joinKey(parts ...string) []byte {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(keySep)
		}
		b.WriteString(p)
	}
	return b.Bytes()
}

func dataKey(tableName, pk, sk string) []byte {
	return joinKey("d", tableName, pk, sk)
}

func dataPrefix(tableName string) []byte {
	return append(joinKey("d", tableName), keySep)
}

func indexKey(tableName, gsi, gpk, gsk, pk, sk string) []byte {
	return joinKey("i", tableName, gsi, gpk, gsk, pk, sk)
}

func indexPrefix(tableName, gsi string) []byte {
	return append(joinKey("i", tableName, gsi), keySep)
}

func ptr[T any](v T) *T { return &v }
