// db.go - Ledger database.
//
// A single bbolt file holds the current state, every root the state has been
// saved with, and the spending keys created by this node.
//
//	state: "current"        -> state JSON
//	roots: sequence (u64 BE) -> root (32 bytes)
//	keys:  owner (32 bytes) -> key JSON

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"zkutxo/internal/field"
	"zkutxo/internal/utxo"
)

var (
	bucketState = []byte("state")
	bucketRoots = []byte("roots")
	bucketKeys  = []byte("keys")

	currentKey = []byte("current")
)

type DB struct {
	path string
	db   *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketState, bucketRoots, bucketKeys} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &DB{path: path, db: bdb}, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Path() string { return d.path }

// SaveState replaces the current state and appends its root to the history.
func (d *DB) SaveState(s *utxo.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	root := s.Root()
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketState).Put(currentKey, data); err != nil {
			return err
		}
		roots := tx.Bucket(bucketRoots)
		seq, err := roots.NextSequence()
		if err != nil {
			return err
		}
		return roots.Put(binary.BigEndian.AppendUint64(nil, seq), root.Bytes())
	})
}

// LoadState returns the current state, if one was saved.
func (d *DB) LoadState() (*utxo.State, bool, error) {
	var out *utxo.State
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketState).Get(currentKey)
		if v == nil {
			return nil
		}
		s := utxo.NewState()
		if err := json.Unmarshal(v, s); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Roots returns every saved root, oldest first.
func (d *DB) Roots() ([]field.Word, error) {
	var out []field.Word
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRoots).ForEach(func(_, v []byte) error {
			w, err := field.WordFromBytes(v)
			if err != nil {
				return err
			}
			out = append(out, w)
			return nil
		})
	})
	return out, err
}

func (d *DB) PutKey(k *utxo.Key) error {
	data, err := json.Marshal(k)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeys).Put(k.Owner.Bytes(), data)
	})
}

// GetKey looks up the key controlling owner.
func (d *DB) GetKey(owner field.Word) (*utxo.Key, bool, error) {
	var out *utxo.Key
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKeys).Get(owner.Bytes())
		if v == nil {
			return nil
		}
		k := new(utxo.Key)
		if err := json.Unmarshal(v, k); err != nil {
			return fmt.Errorf("decode key: %w", err)
		}
		out = k
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Owners lists the owners of every stored key.
func (d *DB) Owners() ([]field.Word, error) {
	var out []field.Word
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeys).ForEach(func(k, _ []byte) error {
			w, err := field.WordFromBytes(k)
			if err != nil {
				return err
			}
			out = append(out, w)
			return nil
		})
	})
	return out, err
}
