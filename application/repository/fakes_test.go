package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"easymemo/application/ports"
	pkgerrors "easymemo/pkg/errors"
)

// fakeRemote is a scripted RemoteAPI backed by an in-memory record list
type fakeRemote struct {
	mu      sync.Mutex
	failing bool
	nextID  int
	records []ports.RemoteMemo

	createCalls int
	updateCalls int
	deleteCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 1}
}

func (f *fakeRemote) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeRemote) ListMemos(ctx context.Context, page, limit int) (*ports.RemotePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		return nil, pkgerrors.NewNetworkError("list unreachable", nil)
	}

	out := make([]ports.RemoteMemo, len(f.records))
	copy(out, f.records)
	return &ports.RemotePage{
		Memos:       out,
		CurrentPage: page,
		TotalPages:  1,
		TotalCount:  len(out),
		HasMore:     false,
		Limit:       limit,
	}, nil
}

func (f *fakeRemote) CreateMemo(ctx context.Context, content string) (*ports.RemoteMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.failing {
		return nil, pkgerrors.NewNetworkError("create unreachable", nil)
	}

	rm := ports.RemoteMemo{
		ServerID:  fmt.Sprintf("srv-%d", f.nextID),
		Content:   content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.nextID++
	f.records = append(f.records, rm)
	return &rm, nil
}

func (f *fakeRemote) UpdateMemo(ctx context.Context, serverID, content string) (*ports.RemoteMemo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updateCalls++
	if f.failing {
		return nil, pkgerrors.NewNetworkError("update unreachable", nil)
	}

	for i := range f.records {
		if f.records[i].ServerID == serverID {
			f.records[i].Content = content
			f.records[i].UpdatedAt = time.Now()
			return &f.records[i], nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("memo")
}

func (f *fakeRemote) DeleteMemo(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteCalls++
	if f.failing {
		return pkgerrors.NewNetworkError("delete unreachable", nil)
	}

	for i := range f.records {
		if f.records[i].ServerID == serverID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("memo")
}

func (f *fakeRemote) Probe(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.failing
}

// memStore is an in-memory LocalStore
type memStore struct {
	mu      sync.Mutex
	snap    *ports.StoreSnapshot
	guestID string
	saves   int
}

func (s *memStore) LoadSnapshot(ctx context.Context) (*ports.StoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *memStore) SaveSnapshot(ctx context.Context, snap *ports.StoreSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.saves++
	return nil
}

func (s *memStore) LoadGuestID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guestID, nil
}

func (s *memStore) SaveGuestID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guestID = id
	return nil
}

func (s *memStore) Close() error { return nil }

// toggleConn is a Connectivity flag the test flips by hand
type toggleConn struct {
	mu     sync.Mutex
	online bool
}

func (c *toggleConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *toggleConn) set(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = online
}
