package user

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
)

const (
	usersTable    = "users"
	idIndex       = "id"
	usernameIndex = "username"
)

// Store keeps users in a go-memdb table indexed by id and username.
type Store struct {
	db     *memdb.MemDB
	nextID atomic.Int64
}

// NewStore creates an empty store. IDs start at 1.
func NewStore() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("user store: %w", err)
	}
	return &Store{db: db}, nil
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			usersTable: {
				Name: usersTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "ID"},
					},
					usernameIndex: {
						Name:    usernameIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Username", Lowercase: true},
					},
				},
			},
		},
	}
}

// NextID reserves the next user id.
func (s *Store) NextID() int64 {
	return s.nextID.Add(1)
}

// Txn opens a transaction. Write transactions are serialized by memdb.
func (s *Store) Txn(write bool) *memdb.Txn {
	return s.db.Txn(write)
}

// Insert stores u within txn.
func (s *Store) Insert(txn *memdb.Txn, u *User) error {
	if err := txn.Insert(usersTable, u); err != nil {
		return fmt.Errorf("insert user %d: %w", u.ID, err)
	}
	return nil
}

// Delete removes u within txn.
func (s *Store) Delete(txn *memdb.Txn, u *User) error {
	if err := txn.Delete(usersTable, u); err != nil {
		return fmt.Errorf("delete user %d: %w", u.ID, err)
	}
	return nil
}

// Get returns the user with id, or nil.
func (s *Store) Get(txn *memdb.Txn, id int64) (*User, error) {
	raw, err := txn.First(usersTable, idIndex, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*User), nil
}

// ByUsername returns the user with username (case-insensitive), or nil.
func (s *Store) ByUsername(txn *memdb.Txn, username string) (*User, error) {
	raw, err := txn.First(usersTable, usernameIndex, username)
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*User), nil
}

// List returns every user ordered by id.
func (s *Store) List(txn *memdb.Txn) ([]User, error) {
	it, err := txn.Get(usersTable, idIndex)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		users = append(users, *obj.(*User))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Latest returns the user with the highest id, or nil when empty.
func (s *Store) Latest(txn *memdb.Txn) (*User, error) {
	users, err := s.List(txn)
	if err != nil || len(users) == 0 {
		return nil, err
	}
	latest := users[len(users)-1]
	return &latest, nil
}

// Count returns the number of stored users.
func (s *Store) Count(txn *memdb.Txn) (int, error) {
	users, err := s.List(txn)
	return len(users), err
}
