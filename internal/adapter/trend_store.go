package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// TrendStore is the append-only series of scan snapshots keyed by timestamp.
type TrendStore interface {
	// Latest returns up to n of the most recent snapshots, oldest first.
	Latest(ctx context.Context, n int) ([]m.ScanSnapshot, error)
	// Append stores a snapshot. Its timestamp must be strictly after the
	// latest stored one.
	Append(ctx context.Context, snapshot m.ScanSnapshot) error
	// Close releases the store and its lock.
	Close() error
}

const snapshotPrefix = "snapshot/"

// BadgerTrendStore keeps the series in a badger database. Badger holds an
// exclusive directory lock, so only one run can write the series at a time.
type BadgerTrendStore struct {
	db *badger.DB
}

// TrendStoreOptions configures OpenBadgerTrendStore.
type TrendStoreOptions struct {
	Path     string
	InMemory bool
	ReadOnly bool
	Logger   *slog.Logger
}

// OpenBadgerTrendStore opens (creating if needed) the series at opts.Path.
func OpenBadgerTrendStore(opts TrendStoreOptions) (*BadgerTrendStore, error) {
	var bopts badger.Options

	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("trend store path is required")
		}

		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create trend store directory %s: %w", opts.Path, err)
		}

		bopts = badger.DefaultOptions(opts.Path).WithReadOnly(opts.ReadOnly)
	}

	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		if isLockError(err) {
			slog.Error("Trend store is locked", "path", opts.Path, "error", err)
			return nil, fmt.Errorf("open trend store %s: %w: %w", opts.Path, m.ErrTrendStoreLocked, err)
		}

		slog.Error("Failed to open trend store", "path", opts.Path, "error", err)

		return nil, fmt.Errorf("open trend store %s: %w", opts.Path, err)
	}

	return &BadgerTrendStore{db: db}, nil
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "directory lock") || strings.Contains(msg, "resource temporarily unavailable")
}

func snapshotKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s%020d", snapshotPrefix, ts.UTC().UnixNano()))
}

// Latest implements TrendStore.
func (s *BadgerTrendStore) Latest(ctx context.Context, n int) ([]m.ScanSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n <= 0 {
		return nil, nil
	}

	var snapshots []m.ScanSnapshot

	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Reverse = true
		iopts.Prefix = []byte(snapshotPrefix)

		it := txn.NewIterator(iopts)
		defer it.Close()

		seek := append([]byte(snapshotPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(snapshotPrefix)) && len(snapshots) < n; it.Next() {
			item := it.Item()

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}

			var snapshot m.ScanSnapshot
			if err := json.Unmarshal(raw, &snapshot); err != nil {
				slog.Warn("Skipping undecodable trend entry", "key", string(item.Key()), "error", err)
				continue
			}

			snapshots = append(snapshots, snapshot)
		}

		return nil
	})
	if err != nil {
		slog.Warn("Failed to read trend series", "error", err)
		return nil, err
	}

	// Reverse iteration yields newest first.
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}

	return snapshots, nil
}

// Append implements TrendStore.
func (s *BadgerTrendStore) Append(ctx context.Context, snapshot m.ScanSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	key := snapshotKey(snapshot.Timestamp)

	err = s.db.Update(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Reverse = true
		iopts.PrefetchValues = false
		iopts.Prefix = []byte(snapshotPrefix)

		it := txn.NewIterator(iopts)
		it.Seek(append([]byte(snapshotPrefix), 0xFF))

		if it.ValidForPrefix([]byte(snapshotPrefix)) && string(it.Item().Key()) >= string(key) {
			latest := it.Item().KeyCopy(nil)
			it.Close()

			return fmt.Errorf("%w: %s <= %s", m.ErrNonMonotonicTimestamp, key, latest)
		}

		it.Close()

		return txn.Set(key, raw)
	})
	if err != nil {
		slog.Error("Failed to append snapshot", "key", string(key), "error", err)
		return fmt.Errorf("append snapshot: %w", err)
	}

	slog.Debug("Appended snapshot", "key", string(key), "total", snapshot.TotalFindings)

	return nil
}

// Close implements TrendStore.
func (s *BadgerTrendStore) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
