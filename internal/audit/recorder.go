package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	recorderBuffer = 256
	writeTimeout   = 5 * time.Second
)

// Recorder writes audit entries asynchronously so handlers never block on
// the audit table. Entries are dropped (and logged) if the buffer is full;
// the audit trail is best-effort, the inventory change itself is not.
type Recorder struct {
	repo   Repository
	logger *slog.Logger

	entries chan *AuditLog
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewRecorder starts a recorder draining into repo. Call Close on shutdown
// to flush buffered entries.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		repo:    repo,
		logger:  logger,
		entries: make(chan *AuditLog, recorderBuffer),
		done:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Record queues an audit entry. Non-blocking: a full buffer drops the
// entry with a warning rather than stalling the caller.
func (r *Recorder) Record(action, entityType, entityID, userID string, details map[string]any) {
	entry := &AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     "api",
		Details:    details,
	}
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("audit buffer full, dropping entry",
			"action", action, "entity_type", entityType, "entity_id", entityID)
	}
}

// Close stops accepting entries and flushes the buffer.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for {
		select {
		case entry := <-r.entries:
			r.write(entry)
		case <-r.done:
			// Flush whatever is still buffered, then exit.
			for {
				select {
				case entry := <-r.entries:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Error("writing audit entry",
			"action", entry.Action, "entity_type", entry.EntityType, "error", err)
	}
}
