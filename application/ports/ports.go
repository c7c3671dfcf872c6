// Package ports defines the contracts between the sync engine and its
// collaborators. The repository and reconciler depend on these interfaces;
// infrastructure provides the implementations.
package ports

import (
	"context"
	"time"

	"easymemo/domain/memo"
)

// RemoteMemo is a memo record as the server represents it
type RemoteMemo struct {
	ServerID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemotePage is one page of server-confirmed memos with its pagination envelope
type RemotePage struct {
	Memos       []RemoteMemo
	CurrentPage int
	TotalPages  int
	TotalCount  int
	HasMore     bool
	Limit       int
}

// RemoteAPI is the consumed wire contract of the memo service. Every method
// except Probe returns a NETWORK or TIMEOUT typed error on failure; the engine
// turns those into sync state instead of surfacing them.
type RemoteAPI interface {
	ListMemos(ctx context.Context, page, limit int) (*RemotePage, error)
	CreateMemo(ctx context.Context, content string) (*RemoteMemo, error)
	UpdateMemo(ctx context.Context, serverID, content string) (*RemoteMemo, error)
	DeleteMemo(ctx context.Context, serverID string) error

	// Probe issues the lightweight reachability request. It never returns an
	// error; any failure, timeout included, reports false.
	Probe(ctx context.Context) bool
}

// StoreSnapshot is the single serialized record the local store persists: the
// full memo collection, unsynced entries included, plus the last-known
// connectivity flag.
type StoreSnapshot struct {
	Memos   []memo.Snapshot `json:"memos"`
	Online  bool            `json:"online"`
	SavedAt time.Time       `json:"savedAt"`
}

// LocalStore is the durable key-value persistence surviving restarts. Only the
// repository writes to it, and never concurrently.
type LocalStore interface {
	// LoadSnapshot returns the persisted snapshot, or (nil, nil) on first run.
	LoadSnapshot(ctx context.Context) (*StoreSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *StoreSnapshot) error

	// LoadGuestID returns the persisted anonymous identity, or "" on first run.
	LoadGuestID(ctx context.Context) (string, error)
	SaveGuestID(ctx context.Context, id string) error

	Close() error
}

// Connectivity answers "can the remote API be reached right now?" from
// last-known state, without blocking.
type Connectivity interface {
	Online() bool
}

// AlwaysOnline is a Connectivity that never reports offline, for contexts
// where no monitor is running.
type AlwaysOnline struct{}

func (AlwaysOnline) Online() bool { return true }
