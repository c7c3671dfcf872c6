// Package integration exercises the full engine stack: SQLite store, HTTP
// client, connectivity monitor, repository and reconciler against a real
// in-process memo service.
package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"easymemo/application/repository"
	appsync "easymemo/application/sync"
	"easymemo/domain/memo"
	"easymemo/infrastructure/connectivity"
	"easymemo/infrastructure/localstore"
	"easymemo/infrastructure/remote"
	"easymemo/infrastructure/remote/remotetest"
)

type stack struct {
	srv     *remotetest.Server
	store   *localstore.Store
	client  *remote.Client
	monitor *connectivity.Monitor
	repo    *repository.Repository
	rec     *appsync.Reconciler
	pager   *repository.Pager
}

// newStack assembles the engine against a fresh fake server. storePath lets a
// test reopen the same store to simulate a restart.
func newStack(t *testing.T, srv *remotetest.Server, storePath string) *stack {
	t.Helper()

	logger := zap.NewNop()

	store, err := localstore.Open(storePath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := remote.NewClient(remote.ClientConfig{
		BaseURL:        srv.URL(),
		GuestID:        "guest-integration",
		RequestTimeout: 2 * time.Second,
	}, logger)

	monitor := connectivity.NewMonitor(client, logger,
		connectivity.WithProbeTimeout(time.Second))

	repo := repository.New(client, store, monitor, logger)
	require.NoError(t, repo.Hydrate(context.Background()))
	monitor.Probe(context.Background())

	return &stack{
		srv:     srv,
		store:   store,
		client:  client,
		monitor: monitor,
		repo:    repo,
		rec:     appsync.New(repo, monitor, time.Minute, logger),
		pager:   repository.NewPager(repo, client, monitor, 2, logger),
	}
}

func newOnlineStack(t *testing.T) *stack {
	t.Helper()
	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)
	return newStack(t, srv, filepath.Join(t.TempDir(), "easymemo.db"))
}

func TestOfflineCreateSyncsOnReconnect(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	s.srv.SetHealthy(false)
	s.monitor.Probe(ctx)
	require.False(t, s.monitor.Online())

	m, err := s.repo.Create(ctx, "written in a tunnel")
	require.NoError(t, err)
	assert.Equal(t, memo.StatusPending, m.Status())
	assert.Equal(t, 0, s.srv.Count())

	// Visible locally the whole time.
	listed, err := s.repo.List(1, 20)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	s.srv.SetHealthy(true)
	require.True(t, s.monitor.Probe(ctx))

	res := s.rec.Reconcile(ctx)
	assert.Equal(t, appsync.Result{Attempted: 1, Synced: 1}, res)
	assert.Equal(t, []string{"written in a tunnel"}, s.srv.Contents())

	listed, err = s.repo.List(1, 20)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, memo.StatusSynced, listed[0].Status())
	assert.True(t, listed[0].HasServerID())
}

func TestOfflineEditDoesNotDuplicate(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	m, err := s.repo.Create(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, memo.StatusSynced, m.Status())

	s.srv.SetHealthy(false)
	s.monitor.Probe(ctx)

	_, err = s.repo.Update(ctx, m.ID(), "v2 from the train")
	require.NoError(t, err)

	s.srv.SetHealthy(true)
	s.monitor.Probe(ctx)

	res := s.rec.Reconcile(ctx)
	assert.Equal(t, appsync.Result{Attempted: 1, Synced: 1}, res)

	// The edit went through the update path; no second record appeared.
	assert.Equal(t, 1, s.srv.Count())
	assert.Equal(t, []string{"v2 from the train"}, s.srv.Contents())
}

func TestOfflineDeleteIsOneWay(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	m, err := s.repo.Create(ctx, "leftover")
	require.NoError(t, err)

	s.srv.SetHealthy(false)
	s.monitor.Probe(ctx)

	require.NoError(t, s.repo.Delete(ctx, m.ID()))
	assert.Equal(t, 0, s.repo.Len())

	s.srv.SetHealthy(true)
	s.monitor.Probe(ctx)
	s.rec.Reconcile(ctx)

	// The remote copy survives; deletes are never queued for retry.
	assert.Equal(t, 1, s.srv.Count())
	assert.Equal(t, 0, s.repo.Len())
}

func TestPendingMemoSurvivesRestart(t *testing.T) {
	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)
	storePath := filepath.Join(t.TempDir(), "easymemo.db")
	ctx := context.Background()

	srv.SetHealthy(false)
	first := newStack(t, srv, storePath)
	_, err := first.repo.Create(ctx, "must survive")
	require.NoError(t, err)
	require.NoError(t, first.store.Close())

	srv.SetHealthy(true)
	second := newStack(t, srv, storePath)

	listed, err := second.repo.List(1, 20)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "must survive", listed[0].Content().String())
	assert.Equal(t, memo.StatusPending, listed[0].Status())

	res := second.rec.Reconcile(ctx)
	assert.Equal(t, appsync.Result{Attempted: 1, Synced: 1}, res)
	assert.Equal(t, []string{"must survive"}, srv.Contents())
}

func TestFailedCreateRetriesUntilItLands(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	s.srv.SetFailWrites(true)

	m, err := s.repo.Create(ctx, "third time lucky")
	require.NoError(t, err)
	assert.Equal(t, memo.StatusFailed, m.Status())

	res := s.rec.Reconcile(ctx)
	assert.Equal(t, appsync.Result{Attempted: 1, Failed: 1}, res)

	s.srv.SetFailWrites(false)
	res = s.rec.Reconcile(ctx)
	assert.Equal(t, appsync.Result{Attempted: 1, Synced: 1}, res)
	assert.Equal(t, 1, s.srv.Count())
}

func TestBacklogDrainsInCreationOrder(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	s.srv.SetHealthy(false)
	s.monitor.Probe(ctx)

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.repo.Create(ctx, content)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	s.srv.SetHealthy(true)
	s.monitor.Probe(ctx)
	s.rec.Reconcile(ctx)

	// Newest-first on the wire means the server got them oldest-first.
	assert.Equal(t, []string{"three", "two", "one"}, s.srv.Contents())
}

func TestPagerWalksServerPagesIntoLocalView(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.srv.Seed("seeded", base.Add(time.Duration(i)*time.Minute))
	}

	for {
		more, err := s.pager.LoadMore(ctx)
		require.NoError(t, err)
		if !more {
			break
		}
	}

	assert.Equal(t, 5, s.repo.Len())
	assert.False(t, s.pager.HasMore())
}

func TestRefreshAfterReconnectPullsOtherDevices(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	s.srv.SetHealthy(false)
	s.monitor.Probe(ctx)

	_, err := s.repo.Create(ctx, "local while offline")
	require.NoError(t, err)

	// Another device wrote while this one was offline.
	s.srv.Seed("from the other device", time.Now().Add(-time.Hour))

	s.srv.SetHealthy(true)
	s.monitor.Probe(ctx)

	require.NoError(t, s.repo.Refresh(ctx))
	s.rec.Reconcile(ctx)

	listed, err := s.repo.List(1, 20)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, m := range listed {
		assert.Equal(t, memo.StatusSynced, m.Status())
	}
	assert.Equal(t, 2, s.srv.Count())
}

func TestConnectivitySubscriptionTriggersDrain(t *testing.T) {
	s := newOnlineStack(t)
	ctx := context.Background()

	s.srv.SetHealthy(false)
	s.monitor.Probe(ctx)

	_, err := s.repo.Create(ctx, "queued behind a dead link")
	require.NoError(t, err)

	s.monitor.Subscribe(func(online bool) {
		if online {
			s.rec.Reconcile(ctx)
		}
	})

	s.srv.SetHealthy(true)
	s.monitor.Probe(ctx)

	assert.Equal(t, []string{"queued behind a dead link"}, s.srv.Contents())
}
