// Package repository holds the authoritative in-memory memo collection and the
// operations that apply optimistic local mutations and attempt remote
// propagation.
package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"easymemo/application/ports"
	"easymemo/domain/memo"
	"easymemo/pkg/common"
	pkgerrors "easymemo/pkg/errors"
)

// Repository owns the memo collection exclusively. Every operation runs under
// one mutex, remote attempt included, mirroring the single event loop of the
// original client: two mutations, or a mutation and a reconciliation step,
// never interleave on the same record. Remote calls are bounded by the HTTP
// client's timeout, so the critical section cannot hang indefinitely.
type Repository struct {
	mu    sync.Mutex
	ready bool
	memos []*memo.Memo // newest-createdAt-first

	remote ports.RemoteAPI
	store  ports.LocalStore
	conn   ports.Connectivity
	logger *zap.Logger
}

// New creates a repository. Hydrate must complete before any operation is
// accepted.
func New(remote ports.RemoteAPI, store ports.LocalStore, conn ports.Connectivity, logger *zap.Logger) *Repository {
	return &Repository{
		remote: remote,
		store:  store,
		conn:   conn,
		logger: logger,
	}
}

// Hydrate restores the persisted collection from the local store. Snapshot
// entries that no longer reconstruct cleanly are skipped, not fatal: losing one
// corrupt record beats refusing to start.
func (r *Repository) Hydrate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return nil
	}

	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "hydrating memo collection")
	}

	if snap != nil {
		r.memos = make([]*memo.Memo, 0, len(snap.Memos))
		for _, s := range snap.Memos {
			m, err := memo.FromSnapshot(s)
			if err != nil {
				r.logger.Warn("Skipping invalid memo snapshot",
					zap.String("memoID", s.ID),
					zap.Error(err),
				)
				continue
			}
			r.memos = append(r.memos, m)
		}
		r.sortLocked()
	}

	r.ready = true
	r.logger.Info("Repository hydrated", zap.Int("memos", len(r.memos)))
	return nil
}

// Ready reports whether hydration has completed
func (r *Repository) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// List returns the requested page of memos in newest-first order. Memos still
// awaiting server confirmation are surfaced on every page so they are never
// hidden from the user; confirmed memos are paginated without duplication.
func (r *Repository) List(page, pageSize int) ([]*memo.Memo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return nil, pkgerrors.NewNotReadyError("list")
	}

	params := common.PageParams{Page: page, PageSize: pageSize}.Normalize()

	var synced, unsynced []*memo.Memo
	for _, m := range r.memos {
		if m.NeedsSync() {
			unsynced = append(unsynced, m)
		} else {
			synced = append(synced, m)
		}
	}

	low, high := common.PageBounds(params, len(synced))

	out := make([]*memo.Memo, 0, len(unsynced)+(high-low))
	for _, m := range unsynced {
		out = append(out, m.Clone())
	}
	for _, m := range synced[low:high] {
		out = append(out, m.Clone())
	}
	sortMemos(out)

	return out, nil
}

// Len returns the size of the collection
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memos)
}

// Counts returns how many memos sit in each sync status
func (r *Repository) Counts() map[memo.SyncStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[memo.SyncStatus]int)
	for _, m := range r.memos {
		counts[m.Status()]++
	}
	return counts
}

// Create applies an optimistic insert and, when online, attempts the remote
// create in the same operation. The memo is always visible locally afterwards;
// only its sync status depends on the remote outcome. Validation is the sole
// failure the caller sees.
func (r *Repository) Create(ctx context.Context, text string) (*memo.Memo, error) {
	content, err := memo.NewContent(text)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return nil, pkgerrors.NewNotReadyError("create")
	}

	m, err := memo.NewMemo(content)
	if err != nil {
		return nil, err
	}

	r.memos = append([]*memo.Memo{m}, r.memos...)
	r.sortLocked()

	if r.conn.Online() {
		r.attemptCreateLocked(ctx, m)
	}

	r.persistLocked(ctx)
	return m.Clone(), nil
}

// Update edits a memo in place. A server-backed memo is updated remotely when
// online; a memo still awaiting its first create keeps the edit folded into
// the same pending record so no duplicate remote write is issued.
func (r *Repository) Update(ctx context.Context, id memo.ID, text string) (*memo.Memo, error) {
	content, err := memo.NewContent(text)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return nil, pkgerrors.NewNotReadyError("update")
	}

	m := r.findLocked(id)
	if m == nil {
		return nil, pkgerrors.NewNotFoundError("memo")
	}

	if m.Content().Equals(content) {
		return m.Clone(), nil
	}

	if err := m.UpdateContent(content); err != nil {
		return nil, err
	}

	if m.HasServerID() && r.conn.Online() {
		r.attemptUpdateLocked(ctx, m)
	}

	r.persistLocked(ctx)
	return m.Clone(), nil
}

// Delete removes a memo locally no matter what. The remote copy, when one
// exists, is deleted on a best-effort basis: a failure is logged and never
// retried, because resurrecting a memo the user deleted is worse than leaving
// a doomed server record behind.
func (r *Repository) Delete(ctx context.Context, id memo.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return pkgerrors.NewNotReadyError("delete")
	}

	idx := -1
	for i, m := range r.memos {
		if m.ID().Equals(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return pkgerrors.NewNotFoundError("memo")
	}

	m := r.memos[idx]
	r.memos = append(r.memos[:idx], r.memos[idx+1:]...)

	if m.HasServerID() {
		if r.conn.Online() {
			if err := r.remote.DeleteMemo(ctx, m.ServerID()); err != nil {
				r.logger.Warn("Remote delete failed; not retried",
					zap.String("memoID", m.ID().String()),
					zap.String("serverID", m.ServerID()),
					zap.Error(err),
				)
			}
		} else {
			r.logger.Info("Deleted while offline; remote copy left behind",
				zap.String("memoID", m.ID().String()),
				zap.String("serverID", m.ServerID()),
			)
		}
	}

	r.persistLocked(ctx)
	return nil
}

// Refresh fetches the first server page and merges it into the collection.
// Triggered after connectivity is restored.
func (r *Repository) Refresh(ctx context.Context) error {
	if !r.conn.Online() {
		return nil
	}

	page, err := r.remote.ListMemos(ctx, 1, common.DefaultPageSize)
	if err != nil {
		r.logger.Warn("Refresh skipped, server unreachable", zap.Error(err))
		return nil
	}

	return r.MergeRemotePage(ctx, page.Memos)
}

// MergeRemotePage folds fetched server records into the collection. A server
// copy replaces the local content of a confirmed memo; a memo with a local
// unconfirmed edit keeps its local content until that edit is pushed. Unknown
// server records are added as synced memos.
func (r *Repository) MergeRemotePage(ctx context.Context, remotes []ports.RemoteMemo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return pkgerrors.NewNotReadyError("merge")
	}

	byServerID := make(map[string]*memo.Memo)
	for _, m := range r.memos {
		if m.HasServerID() {
			byServerID[m.ServerID()] = m
		}
	}

	changed := false
	for _, rm := range remotes {
		content, err := memo.NewContent(rm.Content)
		if err != nil {
			r.logger.Warn("Skipping invalid server record",
				zap.String("serverID", rm.ServerID),
				zap.Error(err),
			)
			continue
		}

		if local, ok := byServerID[rm.ServerID]; ok {
			if local.NeedsSync() {
				// Local unconfirmed edit outranks the server copy.
				continue
			}
			if !local.Content().Equals(content) {
				if err := local.ApplyRemote(content, rm.UpdatedAt); err == nil {
					changed = true
				}
			}
			continue
		}

		m, err := memo.FromRemote(rm.ServerID, content, rm.CreatedAt, rm.UpdatedAt)
		if err != nil {
			continue
		}
		r.memos = append(r.memos, m)
		byServerID[rm.ServerID] = m
		changed = true
	}

	if changed {
		r.sortLocked()
		r.persistLocked(ctx)
	}
	return nil
}

// PendingCreates returns, oldest first, the memos that still need their first
// remote create. Oldest-first keeps creation order intact on the server when
// the reconciler drains them sequentially.
func (r *Repository) PendingCreates() []memo.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []memo.ID
	for i := len(r.memos) - 1; i >= 0; i-- {
		if r.memos[i].NeedsCreate() {
			ids = append(ids, r.memos[i].ID())
		}
	}
	return ids
}

// PendingEdits returns server-backed memos with an unconfirmed local edit
func (r *Repository) PendingEdits() []memo.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []memo.ID
	for i := len(r.memos) - 1; i >= 0; i-- {
		m := r.memos[i]
		if m.NeedsSync() && m.HasServerID() {
			ids = append(ids, m.ID())
		}
	}
	return ids
}

// Push retries the remote propagation of one memo and updates its status in
// place. This is the attempt-remote stage shared with the reconciler; the
// apply-locally stage already happened in whichever operation left the memo
// unsynced. Returns the remote error so the caller can count failures, but the
// memo itself just moves to failed and waits for the next pass.
func (r *Repository) Push(ctx context.Context, id memo.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return pkgerrors.NewNotReadyError("push")
	}

	m := r.findLocked(id)
	if m == nil {
		// Deleted since the scan; nothing to push.
		return pkgerrors.NewNotFoundError("memo")
	}
	if !m.NeedsSync() {
		return nil
	}

	var err error
	if m.HasServerID() {
		err = r.attemptUpdateLocked(ctx, m)
	} else {
		err = r.attemptCreateLocked(ctx, m)
	}

	r.persistLocked(ctx)
	return err
}

// attemptCreateLocked runs the remote create for a memo already inserted
// locally. The wire contract carries no idempotency key: if an earlier attempt
// committed server-side but the response was lost, this retry creates a
// duplicate server record. Accepted risk.
func (r *Repository) attemptCreateLocked(ctx context.Context, m *memo.Memo) error {
	rm, err := r.remote.CreateMemo(ctx, m.Content().String())
	if err != nil {
		m.MarkFailed()
		r.logger.Warn("Remote create failed; memo kept for retry",
			zap.String("memoID", m.ID().String()),
			zap.Error(err),
		)
		return err
	}

	if err := m.MarkSynced(rm.ServerID); err != nil {
		m.MarkFailed()
		r.logger.Error("Server returned create response without an ID",
			zap.String("memoID", m.ID().String()),
		)
		return pkgerrors.NewNetworkError("create response missing server ID", nil)
	}

	r.logger.Debug("Memo synced",
		zap.String("memoID", m.ID().String()),
		zap.String("serverID", rm.ServerID),
	)
	return nil
}

func (r *Repository) attemptUpdateLocked(ctx context.Context, m *memo.Memo) error {
	rm, err := r.remote.UpdateMemo(ctx, m.ServerID(), m.Content().String())
	if err != nil {
		m.MarkFailed()
		r.logger.Warn("Remote update failed; edit kept for retry",
			zap.String("memoID", m.ID().String()),
			zap.String("serverID", m.ServerID()),
			zap.Error(err),
		)
		return err
	}

	updatedAt := rm.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	if err := m.ApplyRemote(m.Content(), updatedAt); err != nil {
		return err
	}

	r.logger.Debug("Edit synced",
		zap.String("memoID", m.ID().String()),
		zap.String("serverID", m.ServerID()),
	)
	return nil
}

// persistLocked flushes the collection to the local store after the in-memory
// mutation has completed. A flush failure is logged, not propagated: the
// user-visible mutation already succeeded.
func (r *Repository) persistLocked(ctx context.Context) {
	snaps := make([]memo.Snapshot, len(r.memos))
	for i, m := range r.memos {
		snaps[i] = m.Snapshot()
	}

	snap := &ports.StoreSnapshot{
		Memos:   snaps,
		Online:  r.conn.Online(),
		SavedAt: time.Now(),
	}

	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		r.logger.Error("Failed to persist memo collection", zap.Error(err))
	}
}

// Resolve looks a memo up by its full ID or a unique ID prefix
func (r *Repository) Resolve(prefix string) (memo.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return memo.ID{}, pkgerrors.NewNotReadyError("resolve")
	}
	if prefix == "" {
		return memo.ID{}, pkgerrors.NewValidationError("memo ID is required")
	}

	var matches []memo.ID
	for _, m := range r.memos {
		if strings.HasPrefix(m.ID().String(), prefix) {
			matches = append(matches, m.ID())
		}
	}

	switch len(matches) {
	case 0:
		return memo.ID{}, pkgerrors.NewNotFoundError("memo")
	case 1:
		return matches[0], nil
	default:
		return memo.ID{}, pkgerrors.NewConflictError("memo ID prefix is ambiguous")
	}
}

func (r *Repository) findLocked(id memo.ID) *memo.Memo {
	for _, m := range r.memos {
		if m.ID().Equals(id) {
			return m
		}
	}
	return nil
}

func (r *Repository) sortLocked() {
	sortMemos(r.memos)
}

// sortMemos orders newest-createdAt-first, with the ID as a tie-breaker so
// repeated listings are stable.
func sortMemos(memos []*memo.Memo) {
	sort.SliceStable(memos, func(i, j int) bool {
		if memos[i].CreatedAt().Equal(memos[j].CreatedAt()) {
			return memos[i].ID().String() < memos[j].ID().String()
		}
		return memos[i].CreatedAt().After(memos[j].CreatedAt())
	})
}
