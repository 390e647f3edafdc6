package memory

import (
	"context"
	"sync"
	"time"

	"z-story-flow-api/internal/domain/repository"
	"z-story-flow-api/pkg/errors"
)

var _ repository.SessionLocker = (*Locker)(nil)

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// Locker 进程内会话锁，每个会话一把，无人持有或等待时回收
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
	wait  time.Duration
}

// NewLocker 创建会话锁，wait 为最长等待时间
func NewLocker(wait time.Duration) *Locker {
	return &Locker{
		locks: make(map[string]*sessionLock),
		wait:  wait,
	}
}

func (l *Locker) Lock(ctx context.Context, sessionID string) (func(), error) {
	lk := l.acquireRef(sessionID)

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(sessionID)
		return nil, errors.ErrSessionBusy.WithError(ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.releaseRef(sessionID)
		})
	}, nil
}

func (l *Locker) acquireRef(id string) *sessionLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[id]
	if !ok {
		lk = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	return lk
}

func (l *Locker) releaseRef(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[id]
	if !ok {
		return
	}
	lk.refs--
	if lk.refs <= 0 {
		delete(l.locks, id)
	}
}
