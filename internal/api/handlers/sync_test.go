package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/futsync/internal/calendar"
	"github.com/wonny/futsync/internal/syncer"
	"github.com/wonny/futsync/pkg/config"
	"github.com/wonny/futsync/pkg/logger"
)

// recordingInvalidator captures the prefixes dropped after a run.
type recordingInvalidator struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingInvalidator) InvalidatePrefix(ctx context.Context, keyPrefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, keyPrefix)
	return nil
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.prefixes...)
}

func newTestSyncHandler(cache cacheInvalidator) *SyncHandler {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug")
	o := syncer.New(nil, nil, nil, nil, calendar.New(config.CalendarConfig{}), config.SyncConfig{}, log)
	return NewSyncHandler(o, nil, NewProgressHub(log), cache, log)
}

func TestTrigger_InvalidatesReadCacheAfterSuccess(t *testing.T) {
	cache := &recordingInvalidator{}
	h := newTestSyncHandler(cache)

	w := httptest.NewRecorder()
	h.trigger(w, "all", func(ctx context.Context, p syncer.ProgressFunc) error {
		return nil
	})

	require.Equal(t, 202, w.Code)
	assert.Eventually(t, func() bool {
		return len(cache.seen()) == len(readCachePrefixes)
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, readCachePrefixes, cache.seen())
}

func TestTrigger_KeepsCacheOnFailure(t *testing.T) {
	cache := &recordingInvalidator{}
	h := newTestSyncHandler(cache)

	done := make(chan struct{})
	w := httptest.NewRecorder()
	h.trigger(w, "quotes", func(ctx context.Context, p syncer.ProgressFunc) error {
		defer close(done)
		return errors.New("provider down")
	})

	require.Equal(t, 202, w.Code)
	<-done
	// The goroutine logs after fn returns; give it a beat to finish.
	assert.Never(t, func() bool {
		return len(cache.seen()) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestTrigger_NilCacheIsSafe(t *testing.T) {
	h := newTestSyncHandler(nil)

	done := make(chan struct{})
	w := httptest.NewRecorder()
	h.trigger(w, "master", func(ctx context.Context, p syncer.ProgressFunc) error {
		defer close(done)
		return nil
	})

	require.Equal(t, 202, w.Code)
	<-done
}
