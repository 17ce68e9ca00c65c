package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("cache")

// Bolt is a Backend stored in a bbolt file. Values are prefixed with the
// expiry as big-endian Unix nanoseconds (0 for none).
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path. It fails after one second
// when another process holds the file.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Name() string { return "bolt" }

func (b *Bolt) Get(_ context.Context, key string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		decoded, err := decodeBoltValue(raw)
		if err != nil {
			return err
		}
		entry, found = decoded, true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, found, nil
}

func (b *Bolt) Set(_ context.Context, key string, entry Entry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), encodeBoltValue(entry))
	})
}

func (b *Bolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
}

func (b *Bolt) Clear(context.Context) (int, error) {
	var n int
	err := b.db.Update(func(tx *bolt.Tx) error {
		n = tx.Bucket(boltBucket).Stats().KeyN
		if err := tx.DeleteBucket(boltBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(boltBucket)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *Bolt) Len(context.Context) (int, error) {
	var n int
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(boltBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func encodeBoltValue(entry Entry) []byte {
	out := make([]byte, 8+len(entry.Value))
	if !entry.Expires.IsZero() {
		binary.BigEndian.PutUint64(out, uint64(entry.Expires.UnixNano()))
	}
	copy(out[8:], entry.Value)
	return out
}

// decodeBoltValue copies out of raw, which is only valid inside the
// transaction.
func decodeBoltValue(raw []byte) (Entry, error) {
	if len(raw) < 8 {
		return Entry{}, errors.New("corrupt cache entry")
	}
	entry := Entry{Value: append([]byte(nil), raw[8:]...)}
	if nanos := binary.BigEndian.Uint64(raw); nanos > 0 {
		entry.Expires = time.Unix(0, int64(nanos))
	}
	return entry, nil
}
