package warranty

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	warrantyBucketName = "warranties"
	accountBucketName  = "accounts"
)

// DB defines the interface for database operations
type DB interface {
	// SaveWarranty inserts or replaces a warranty
	SaveWarranty(ctx context.Context, w *Warranty) error

	// GetWarranty retrieves a warranty by ID, or ErrNotFound
	GetWarranty(ctx context.Context, id string) (*Warranty, error)

	// ListWarranties returns a user's warranties, or every warranty when userID is empty
	ListWarranties(ctx context.Context, userID string) ([]*Warranty, error)

	// MarkReminded records when the expiry reminder went out. It never creates a warranty
	// and returns ErrNotFound when the warranty is gone.
	MarkReminded(ctx context.Context, id string, at time.Time) error

	// DeleteWarranty removes a warranty
	DeleteWarranty(ctx context.Context, id string) error

	// GetAccount retrieves an account, or ErrNotFound
	GetAccount(ctx context.Context, userID string) (*Account, error)

	// SaveAccount inserts or replaces an account
	SaveAccount(ctx context.Context, a *Account) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{warrantyBucketName, accountBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) put(bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

func (b *BoltDB) get(bucket, key string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveWarranty saves a warranty to the database
func (b *BoltDB) SaveWarranty(ctx context.Context, w *Warranty) error {
	return b.put(warrantyBucketName, w.ID, w)
}

// GetWarranty retrieves a warranty by ID
func (b *BoltDB) GetWarranty(ctx context.Context, id string) (*Warranty, error) {
	var w Warranty
	if err := b.get(warrantyBucketName, id, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWarranties returns the warranties owned by userID, or all of them
func (b *BoltDB) ListWarranties(ctx context.Context, userID string) ([]*Warranty, error) {
	warranties := make([]*Warranty, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(warrantyBucketName)).ForEach(func(k, v []byte) error {
			var w Warranty
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("unmarshaling warranty %s: %w", k, err)
			}
			if userID == "" || w.UserID == userID {
				warranties = append(warranties, &w)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return warranties, nil
}

// MarkReminded sets RemindedAt on an existing warranty
func (b *BoltDB) MarkReminded(ctx context.Context, id string, at time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(warrantyBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", warrantyBucketName, id, ErrNotFound)
		}
		var w Warranty
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("unmarshaling warranty %s: %w", id, err)
		}
		w.RemindedAt = &at
		w.UpdatedAt = at
		updated, err := json.Marshal(&w)
		if err != nil {
			return fmt.Errorf("marshaling warranty %s: %w", id, err)
		}
		return bucket.Put([]byte(id), updated)
	})
}

// DeleteWarranty removes a warranty from the database
func (b *BoltDB) DeleteWarranty(ctx context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(warrantyBucketName)).Delete([]byte(id))
	})
}

// GetAccount retrieves an account by user ID
func (b *BoltDB) GetAccount(ctx context.Context, userID string) (*Account, error) {
	var a Account
	if err := b.get(accountBucketName, userID, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAccount saves an account to the database
func (b *BoltDB) SaveAccount(ctx context.Context, a *Account) error {
	return b.put(accountBucketName, a.UserID, a)
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
