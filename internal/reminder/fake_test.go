package reminder

import (
	"context"
	"errors"
	"sync"

	"sleepbot/internal/delivery"
	"sleepbot/internal/storage"
)

type broadcastCall struct {
	ids  []string
	dest delivery.Destination
	text string
}

// recordingDeliverer records calls and fails recipients listed in failDirect.
type recordingDeliverer struct {
	mu            sync.Mutex
	direct        []string
	texts         []string
	broadcasts    []broadcastCall
	failDirect    map[string]bool
	failBroadcast bool
}

var errBlocked = errors.New("blocked")

func (r *recordingDeliverer) DeliverDirect(ctx context.Context, id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDirect[id] {
		return errBlocked
	}
	r.direct = append(r.direct, id)
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingDeliverer) DeliverBroadcast(ctx context.Context, ids []string, dest delivery.Destination, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBroadcast {
		return delivery.ErrNoDestination
	}
	r.broadcasts = append(r.broadcasts, broadcastCall{ids: append([]string(nil), ids...), dest: dest, text: text})
	return nil
}

func (r *recordingDeliverer) directCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.direct)
}

type memStore struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (m *memStore) AppendAudit(ctx context.Context, e storage.AuditEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memStore) RecentAudit(ctx context.Context, n int) ([]storage.AuditEntry, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }
