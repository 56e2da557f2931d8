package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

const (
	defaultSweepInterval = 15 * time.Minute
	defaultLockTTL       = 10 * time.Minute
)

type expirer interface {
	ExpirePending(ctx context.Context) (int, error)
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// sweepLock keeps concurrent sweeper instances from racing a sweep.
type sweepLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func newSweepLock(client redisStore, key string, ttl time.Duration) (*sweepLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &sweepLock{client: client, key: key, ttl: ttl}, nil
}

func (l *sweepLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches.
func (l *sweepLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

type sweeper struct {
	logg     *logger.Logger
	svc      expirer
	lock     *sweepLock
	interval time.Duration
}

func newSweeper(logg *logger.Logger, svc expirer, lock *sweepLock, interval time.Duration) (*sweeper, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if svc == nil {
		return nil, errors.New("reconcile service required")
	}
	if lock == nil {
		return nil, errors.New("lock required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &sweeper{logg: logg, svc: svc, lock: lock, interval: interval}, nil
}

// Run sweeps once immediately, then on every tick until the context ends.
func (s *sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *sweeper) sweepOnce(ctx context.Context) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "failed to acquire sweep lock", err)
		return
	}
	if !acquired {
		s.logg.Info(ctx, "sweep lock held elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release sweep lock", err)
		}
	}()

	touched, err := s.svc.ExpirePending(ctx)
	if err != nil {
		s.logg.Error(ctx, "subscription sweep failed", err)
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "touched", touched), "subscription sweep complete")
}
