package repository

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"easymemo/application/ports"
	"easymemo/pkg/common"
)

// Pager fetches server-backed memo pages on demand and merges them into the
// repository's ordered view. Concurrent LoadMore calls while a load is in
// flight coalesce onto that load instead of issuing duplicate network calls.
type Pager struct {
	mu       sync.Mutex
	nextPage int
	hasMore  bool
	inflight *pageLoad

	repo     *Repository
	remote   ports.RemoteAPI
	conn     ports.Connectivity
	pageSize int
	logger   *zap.Logger
}

type pageLoad struct {
	done    chan struct{}
	hasMore bool
	err     error
}

// NewPager creates a pager positioned at the first page
func NewPager(repo *Repository, remote ports.RemoteAPI, conn ports.Connectivity, pageSize int, logger *zap.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = common.DefaultPageSize
	}
	return &Pager{
		nextPage: 1,
		hasMore:  true,
		repo:     repo,
		remote:   remote,
		conn:     conn,
		pageSize: pageSize,
		logger:   logger,
	}
}

// HasMore reports whether the server may hold further pages
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Reset positions the pager back at the first page, used after mutations that
// want a fresh view instead of appending.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextPage = 1
	p.hasMore = true
}

// LoadMore fetches the next confirmed page and appends it to the repository.
// While offline it leaves the repository as the best-known state and reports
// hasMore=false without touching the network. The returned flag tells the
// caller whether another page is worth requesting.
func (p *Pager) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()

	if l := p.inflight; l != nil {
		p.mu.Unlock()
		<-l.done
		return l.hasMore, l.err
	}

	if !p.hasMore {
		p.mu.Unlock()
		return false, nil
	}

	if !p.conn.Online() {
		p.mu.Unlock()
		return false, nil
	}

	load := &pageLoad{done: make(chan struct{})}
	p.inflight = load
	page := p.nextPage
	p.mu.Unlock()

	remotePage, err := p.remote.ListMemos(ctx, page, p.pageSize)
	if err == nil {
		err = p.repo.MergeRemotePage(ctx, remotePage.Memos)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.logger.Warn("Page load failed", zap.Int("page", page), zap.Error(err))
		load.hasMore = p.hasMore
		load.err = err
	} else {
		p.nextPage = page + 1
		p.hasMore = remotePage.HasMore
		load.hasMore = remotePage.HasMore
	}

	close(load.done)
	p.inflight = nil

	return load.hasMore, load.err
}
