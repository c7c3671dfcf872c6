package memo

import (
	"time"

	pkgerrors "easymemo/pkg/errors"
)

// SyncStatus represents a memo's position in the synchronization state machine:
//
//	(new) -> pending -> {synced | failed}
//	failed -> pending -> {synced | failed}
//	synced -> pending (re-entered on a subsequent edit)
//
// failed is never terminal while the memo exists; synced or local removal are
// the only terminal states.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// Memo is the sole domain entity: one user-authored text note, the unit of
// storage and synchronization.
type Memo struct {
	id        ID
	serverID  string
	content   Content
	createdAt time.Time
	updatedAt time.Time
	status    SyncStatus
}

// NewMemo creates a memo from a user submission. It always starts pending; the
// repository promotes it to synced when (and if) the remote create confirms.
func NewMemo(content Content) (*Memo, error) {
	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("content cannot be empty")
	}

	now := time.Now()
	return &Memo{
		id:        NewID(),
		content:   content,
		createdAt: now,
		updatedAt: now,
		status:    StatusPending,
	}, nil
}

// FromRemote builds a confirmed memo from a server record, used when merging
// fetched pages that have no local counterpart yet.
func FromRemote(serverID string, content Content, createdAt, updatedAt time.Time) (*Memo, error) {
	if serverID == "" {
		return nil, pkgerrors.NewValidationError("server ID cannot be empty")
	}
	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("content cannot be empty")
	}

	return &Memo{
		id:        NewID(),
		serverID:  serverID,
		content:   content,
		createdAt: createdAt,
		updatedAt: updatedAt,
		status:    StatusSynced,
	}, nil
}

// ID returns the client-generated identifier
func (m *Memo) ID() ID {
	return m.id
}

// ServerID returns the server-assigned identifier, empty until first confirmed
func (m *Memo) ServerID() string {
	return m.serverID
}

// Content returns the memo's content
func (m *Memo) Content() Content {
	return m.content
}

// CreatedAt returns when the memo was first created locally. Server
// reconciliation never overwrites it, so the user-perceived ordering is stable.
func (m *Memo) CreatedAt() time.Time {
	return m.createdAt
}

// UpdatedAt returns when the content last changed
func (m *Memo) UpdatedAt() time.Time {
	return m.updatedAt
}

// Status returns the memo's sync status
func (m *Memo) Status() SyncStatus {
	return m.status
}

// HasServerID reports whether the memo is known to the server
func (m *Memo) HasServerID() bool {
	return m.serverID != ""
}

// NeedsSync reports whether the memo still awaits server confirmation
func (m *Memo) NeedsSync() bool {
	return m.status == StatusPending || m.status == StatusFailed
}

// NeedsCreate reports whether the memo must still be created remotely. Edits to
// such memos fold into the same pending record, so a single remote create
// carries the latest content.
func (m *Memo) NeedsCreate() bool {
	return m.NeedsSync() && m.serverID == ""
}

// MarkSynced records server confirmation. A synced memo always carries a
// non-empty server ID.
func (m *Memo) MarkSynced(serverID string) error {
	if serverID == "" {
		return pkgerrors.NewValidationError("cannot mark synced without a server ID")
	}

	m.serverID = serverID
	m.status = StatusSynced
	return nil
}

// MarkFailed records a failed remote attempt; the reconciler retries it later
func (m *Memo) MarkFailed() {
	m.status = StatusFailed
}

// MarkPending re-queues the memo for another remote attempt
func (m *Memo) MarkPending() {
	m.status = StatusPending
}

// UpdateContent applies a local edit. The memo drops back to pending until the
// edit is confirmed remotely. Equal content is a no-op.
func (m *Memo) UpdateContent(content Content) error {
	if content.IsEmpty() {
		return pkgerrors.NewValidationError("content cannot be empty")
	}

	if content.Equals(m.content) {
		return nil
	}

	m.content = content
	m.updatedAt = time.Now()
	m.status = StatusPending
	return nil
}

// ApplyRemote overwrites content with the server's copy after a confirmed
// update or refresh. createdAt is deliberately left untouched.
func (m *Memo) ApplyRemote(content Content, updatedAt time.Time) error {
	if content.IsEmpty() {
		return pkgerrors.NewValidationError("content cannot be empty")
	}
	if m.serverID == "" {
		return pkgerrors.NewValidationError("cannot apply remote state to a memo without a server ID")
	}

	m.content = content
	m.updatedAt = updatedAt
	m.status = StatusSynced
	return nil
}

// Clone returns an independent copy of the memo
func (m *Memo) Clone() *Memo {
	clone := *m
	return &clone
}

// Snapshot is the serialized form of a memo, used by the local store
type Snapshot struct {
	ID         string    `json:"id"`
	ServerID   string    `json:"serverId,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	SyncStatus string    `json:"syncStatus"`
}

// Snapshot returns the memo's serialized form
func (m *Memo) Snapshot() Snapshot {
	return Snapshot{
		ID:         m.id.String(),
		ServerID:   m.serverID,
		Content:    m.content.String(),
		CreatedAt:  m.createdAt,
		UpdatedAt:  m.updatedAt,
		SyncStatus: string(m.status),
	}
}

// FromSnapshot reconstructs a memo from its serialized form with preserved
// identity and timestamps.
func FromSnapshot(s Snapshot) (*Memo, error) {
	id, err := ParseID(s.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid memo snapshot: " + err.Error())
	}

	content, err := NewContent(s.Content)
	if err != nil {
		return nil, err
	}

	status := SyncStatus(s.SyncStatus)
	switch status {
	case StatusPending, StatusFailed:
	case StatusSynced:
		if s.ServerID == "" {
			return nil, pkgerrors.NewValidationError("synced memo snapshot is missing a server ID")
		}
	default:
		return nil, pkgerrors.NewValidationError("unknown sync status: " + s.SyncStatus)
	}

	return &Memo{
		id:        id,
		serverID:  s.ServerID,
		content:   content,
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
		status:    status,
	}, nil
}
