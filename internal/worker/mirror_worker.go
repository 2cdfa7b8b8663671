// Package worker copies committed ledgers from the primary table into a
// mirror table, driven by commit messages and a periodic reconcile pass.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"finance/internal/amqp"
	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/table"
)

// Source is the primary ledger table.
type Source interface {
	table.Reader
}

// MirrorWorker keeps a mirror table in step with a source table. The mirror
// is a replica: it is overwritten without the session check the primary uses.
type MirrorWorker struct {
	user   string
	source Source
	mirror table.Store

	mu           sync.Mutex
	lastMirrored core.SessionToken
}

func NewMirrorWorker(user string, source Source, mirror table.Store) *MirrorWorker {
	return &MirrorWorker{user: user, source: source, mirror: mirror}
}

// HandleCommit mirrors the source after a commit message. Messages for other
// users and sessions not newer than the last mirrored one are acknowledged
// without work.
func (w *MirrorWorker) HandleCommit(ctx context.Context, msg *amqp.LedgerCommitMessage) error {
	if msg.User != w.user {
		slog.DebugContext(ctx, "Ignoring commit for another user", "user", msg.User)
		return nil
	}
	session, err := core.ParseSessionToken(msg.Session)
	if err != nil {
		// Redelivery cannot fix a malformed token.
		slog.ErrorContext(ctx, "Dropping commit with bad session", "session", msg.Session, "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !session.After(w.lastMirrored) {
		slog.InfoContext(ctx, "Skipping stale commit",
			"session", msg.Session,
			"last_mirrored", w.lastMirrored.String())
		return nil
	}
	return w.copyLocked(ctx)
}

// Reconcile copies the source when the mirror holds different rows. It
// covers lost commit messages and deletions that did not raise the newest
// session in the table.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	src, err := w.source.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read source ledger: %w", err)
	}
	if _, err := w.mirror.CreateIfMissing(ctx); err != nil {
		return fmt.Errorf("prepare mirror: %w", err)
	}
	dst, err := w.mirror.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read mirror ledger: %w", err)
	}
	if sameRows(src, dst) {
		w.lastMirrored = core.LatestSession(dst)
		return nil
	}
	return w.writeLocked(ctx, src)
}

func (w *MirrorWorker) copyLocked(ctx context.Context) error {
	records, err := w.source.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read source ledger: %w", err)
	}
	return w.writeLocked(ctx, records)
}

func (w *MirrorWorker) writeLocked(ctx context.Context, records []core.Record) error {
	if err := w.mirror.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("write mirror ledger: %w", err)
	}
	w.lastMirrored = core.LatestSession(records)
	slog.InfoContext(ctx, "Mirrored ledger",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpMirror,
		log.FieldUser, w.user,
		log.FieldRecords, len(records),
		log.FieldSession, w.lastMirrored.String())
	return nil
}

// sameRows compares persisted columns only, ignoring row order.
func sameRows(a, b []core.Record) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, r := range a {
		counts[strings.Join(table.EncodeRow(r), "\x1f")]++
	}
	for _, r := range b {
		k := strings.Join(table.EncodeRow(r), "\x1f")
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

// LastMirrored returns the newest session copied so far.
func (w *MirrorWorker) LastMirrored() core.SessionToken {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastMirrored
}

// RunReconciler calls Reconcile every interval until ctx is done.
func (w *MirrorWorker) RunReconciler(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				slog.ErrorContext(ctx, "Reconcile failed", "error", err)
			}
		}
	}
}
