package reconciler

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/qprofile/internal/user"
	"github.com/kbukum/qprofile/sse"
)

// Change is a single row mutation derived from a stream frame.
type Change struct {
	Kind sse.Kind
	// User is set for user_created.
	User user.User
	// ID is the affected user id.
	ID int64
}

// ChangeFromFrame decodes a user_created or user_deleted frame. ok is false
// for frames that carry no row change.
func ChangeFromFrame(f *sse.Frame) (ch Change, ok bool, err error) {
	switch f.Kind() {
	case sse.KindUserCreated:
		var u user.User
		if err := json.Unmarshal([]byte(f.Data), &u); err != nil {
			return Change{}, false, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		return Change{Kind: sse.KindUserCreated, User: u, ID: u.ID}, true, nil
	case sse.KindUserDeleted:
		var d user.DeletedEvent
		if err := json.Unmarshal([]byte(f.Data), &d); err != nil {
			return Change{}, false, fmt.Errorf("decode %s: %w", f.Event, err)
		}
		return Change{Kind: sse.KindUserDeleted, ID: d.ID}, true, nil
	default:
		return Change{}, false, nil
	}
}

// Table is the client-side copy of the user list.
type Table struct {
	mu   sync.RWMutex
	rows map[int64]user.User
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{rows: make(map[int64]user.User)}
}

// Insert adds u unless a row with the same id exists. Reports whether the
// table changed.
func (t *Table) Insert(u user.User) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[u.ID]; ok {
		return false
	}
	t.rows[u.ID] = u
	return true
}

// Remove deletes the row with id if present. Reports whether the table
// changed.
func (t *Table) Remove(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

// Replace discards every row and loads users.
func (t *Table) Replace(users []user.User) {
	rows := make(map[int64]user.User, len(users))
	for _, u := range users {
		rows[u.ID] = u
	}
	t.mu.Lock()
	t.rows = rows
	t.mu.Unlock()
}

// Apply applies a change idempotently.
func (t *Table) Apply(ch Change) bool {
	switch ch.Kind {
	case sse.KindUserCreated:
		return t.Insert(ch.User)
	case sse.KindUserDeleted:
		return t.Remove(ch.ID)
	default:
		return false
	}
}

// Rows returns a copy of the table ordered by id.
func (t *Table) Rows() []user.User {
	t.mu.RLock()
	rows := make([]user.User, 0, len(t.rows))
	for _, u := range t.rows {
		rows = append(rows, u)
	}
	t.mu.RUnlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Has reports whether a row with id exists.
func (t *Table) Has(id int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rows[id]
	return ok
}
