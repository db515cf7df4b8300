package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketBlocks = []byte("blocks")

// entries keep sub-second discovery times
var entryEncoding, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

// BoltJournal stores entries in a bbolt file keyed by discovery time, so a
// cursor walks them in chronological order.
type BoltJournal struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// NewBoltJournal opens (or creates) the journal at path.
func NewBoltJournal(path string, logger *zap.Logger) (*BoltJournal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	var count int
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketBlocks)
		if err != nil {
			return err
		}
		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	logger.Info("block journal opened", zap.String("path", path), zap.Int("entries", count))
	return &BoltJournal{db: db, logger: logger}, nil
}

func entryKey(e Entry) []byte {
	key := make([]byte, 8, 8+len(e.Hash))
	binary.BigEndian.PutUint64(key, uint64(e.FoundAt.UnixNano()))
	return append(key, e.Hash...)
}

func (j *BoltJournal) Record(_ context.Context, e Entry) error {
	e.FoundAt = e.FoundAt.UTC()
	data, err := entryEncoding.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	err = j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(entryKey(e), data)
	})
	if err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}
	return nil
}

func (j *BoltJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBlocks).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var e Entry
			if err := cbor.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %x: %w", k, err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (j *BoltJournal) Prune(_ context.Context, cutoff time.Time) (int, error) {
	limit := make([]byte, 8)
	binary.BigEndian.PutUint64(limit, uint64(cutoff.UnixNano()))

	var removed int
	err := j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && string(k[:8]) < string(limit); k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return removed, nil
}

func (j *BoltJournal) SetStatus(_ context.Context, e Entry, status Status) error {
	key := entryKey(e)
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		var stored Entry
		if err := cbor.Unmarshal(v, &stored); err != nil {
			return fmt.Errorf("decode entry %x: %w", key, err)
		}
		stored.Status = status
		data, err := entryEncoding.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		return b.Put(key, data)
	})
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}
