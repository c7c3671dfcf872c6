package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"easymemo/application/ports"
	"easymemo/application/repository"
	"easymemo/domain/memo"
	pkgerrors "easymemo/pkg/errors"
)

// scriptedRemote records create order and can fail selected contents
type scriptedRemote struct {
	mu       stdsync.Mutex
	failing  bool
	failOnly map[string]bool
	nextID   int
	created  []string
}

func newScriptedRemote() *scriptedRemote {
	return &scriptedRemote{nextID: 1, failOnly: map[string]bool{}}
}

func (s *scriptedRemote) ListMemos(ctx context.Context, page, limit int) (*ports.RemotePage, error) {
	return &ports.RemotePage{CurrentPage: page, Limit: limit}, nil
}

func (s *scriptedRemote) CreateMemo(ctx context.Context, content string) (*ports.RemoteMemo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing || s.failOnly[content] {
		return nil, pkgerrors.NewNetworkError("create unreachable", nil)
	}

	rm := ports.RemoteMemo{
		ServerID:  fmt.Sprintf("srv-%d", s.nextID),
		Content:   content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.nextID++
	s.created = append(s.created, content)
	return &rm, nil
}

func (s *scriptedRemote) UpdateMemo(ctx context.Context, serverID, content string) (*ports.RemoteMemo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing || s.failOnly[content] {
		return nil, pkgerrors.NewNetworkError("update unreachable", nil)
	}
	return &ports.RemoteMemo{ServerID: serverID, Content: content, UpdatedAt: time.Now()}, nil
}

func (s *scriptedRemote) DeleteMemo(ctx context.Context, serverID string) error { return nil }

func (s *scriptedRemote) Probe(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.failing
}

type nullStore struct{}

func (nullStore) LoadSnapshot(context.Context) (*ports.StoreSnapshot, error) { return nil, nil }
func (nullStore) SaveSnapshot(context.Context, *ports.StoreSnapshot) error   { return nil }
func (nullStore) LoadGuestID(context.Context) (string, error)                { return "", nil }
func (nullStore) SaveGuestID(context.Context, string) error                  { return nil }
func (nullStore) Close() error                                               { return nil }

type flagConn struct{ online bool }

func (c *flagConn) Online() bool { return c.online }

func seedRepo(t *testing.T, remote ports.RemoteAPI, conn ports.Connectivity) *repository.Repository {
	t.Helper()
	repo := repository.New(remote, nullStore{}, conn, zap.NewNop())
	require.NoError(t, repo.Hydrate(context.Background()))
	return repo
}

func TestReconcileDrainsBacklogOldestFirst(t *testing.T) {
	remote := newScriptedRemote()
	conn := &flagConn{online: false}
	repo := seedRepo(t, remote, conn)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := repo.Create(ctx, content)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	conn.online = true
	res := New(repo, conn, 0, zap.NewNop()).Reconcile(ctx)

	assert.Equal(t, Result{Attempted: 3, Synced: 3}, res)
	assert.Equal(t, []string{"first", "second", "third"}, remote.created)

	counts := repo.Counts()
	assert.Equal(t, 3, counts[memo.StatusSynced])
}

func TestReconcileOneFailureDoesNotAbortThePass(t *testing.T) {
	remote := newScriptedRemote()
	remote.failOnly["second"] = true
	conn := &flagConn{online: false}
	repo := seedRepo(t, remote, conn)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := repo.Create(ctx, content)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	conn.online = true
	res := New(repo, conn, 0, zap.NewNop()).Reconcile(ctx)

	assert.Equal(t, Result{Attempted: 3, Synced: 2, Failed: 1}, res)
	assert.Equal(t, []string{"first", "third"}, remote.created)

	counts := repo.Counts()
	assert.Equal(t, 1, counts[memo.StatusFailed])
}

func TestReconcileRetriesFailedOnNextPass(t *testing.T) {
	remote := newScriptedRemote()
	remote.failing = true
	conn := &flagConn{online: true}
	repo := seedRepo(t, remote, conn)
	ctx := context.Background()

	_, err := repo.Create(ctx, "stubborn")
	require.NoError(t, err)

	rec := New(repo, conn, 0, zap.NewNop())

	res := rec.Reconcile(ctx)
	assert.Equal(t, Result{Attempted: 1, Failed: 1}, res)

	remote.mu.Lock()
	remote.failing = false
	remote.mu.Unlock()

	res = rec.Reconcile(ctx)
	assert.Equal(t, Result{Attempted: 1, Synced: 1}, res)
}

func TestReconcilePushesPendingEdits(t *testing.T) {
	remote := newScriptedRemote()
	conn := &flagConn{online: true}
	repo := seedRepo(t, remote, conn)
	ctx := context.Background()

	m, err := repo.Create(ctx, "v1")
	require.NoError(t, err)

	conn.online = false
	_, err = repo.Update(ctx, m.ID(), "v2")
	require.NoError(t, err)
	conn.online = true

	res := New(repo, conn, 0, zap.NewNop()).Reconcile(ctx)

	assert.Equal(t, Result{Attempted: 1, Synced: 1}, res)
	counts := repo.Counts()
	assert.Equal(t, 1, counts[memo.StatusSynced])
}

func TestReconcileWithEmptyBacklog(t *testing.T) {
	remote := newScriptedRemote()
	conn := &flagConn{online: true}
	repo := seedRepo(t, remote, conn)

	res := New(repo, conn, 0, zap.NewNop()).Reconcile(context.Background())
	assert.Equal(t, Result{}, res)
}

// staticBacklog scripts the scan results and per-memo push outcomes directly
type staticBacklog struct {
	creates []memo.ID
	edits   []memo.ID
	pushErr map[string]error
	pushed  []memo.ID
}

func (b *staticBacklog) PendingCreates() []memo.ID { return b.creates }
func (b *staticBacklog) PendingEdits() []memo.ID   { return b.edits }

func (b *staticBacklog) Push(ctx context.Context, id memo.ID) error {
	b.pushed = append(b.pushed, id)
	return b.pushErr[id.String()]
}

func TestReconcileSkipsMemosDeletedSinceScan(t *testing.T) {
	kept := memo.NewID()
	deleted := memo.NewID()

	backlog := &staticBacklog{
		creates: []memo.ID{deleted, kept},
		pushErr: map[string]error{
			deleted.String(): pkgerrors.NewNotFoundError("memo"),
		},
	}

	res := New(backlog, &flagConn{online: true}, 0, zap.NewNop()).Reconcile(context.Background())

	// The vanished memo is neither an attempt nor a failure.
	assert.Equal(t, Result{Attempted: 1, Synced: 1}, res)
	assert.Len(t, backlog.pushed, 2)
}

func TestSetIntervalReschedulesRunningLoop(t *testing.T) {
	remote := newScriptedRemote()
	remote.failing = true
	conn := &flagConn{online: true}
	repo := seedRepo(t, remote, conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The create fails remotely, parking the memo for the loop to retry.
	_, err := repo.Create(ctx, "queued")
	require.NoError(t, err)
	remote.mu.Lock()
	remote.failing = false
	remote.mu.Unlock()

	// The initial cadence would never fire within the test.
	rec := New(repo, conn, time.Hour, zap.NewNop())
	go rec.Run(ctx)

	rec.SetInterval(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()
		return len(remote.created) == 1
	}, time.Second, 10*time.Millisecond, "shortened interval did not take effect")
}

func TestRunSkipsPassesWhileOffline(t *testing.T) {
	remote := newScriptedRemote()
	conn := &flagConn{online: false}
	repo := seedRepo(t, remote, conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := repo.Create(ctx, "waiting")
	require.NoError(t, err)

	rec := New(repo, conn, 5*time.Millisecond, zap.NewNop())
	go rec.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	remote.mu.Lock()
	created := len(remote.created)
	remote.mu.Unlock()
	assert.Zero(t, created, "offline ticks must not reconcile")
}
