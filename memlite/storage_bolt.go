package memlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var docsBucket = []byte("docs")

func boltFile(path string) string {
	return filepath.Join(path, "db.bolt")
}

type boltStore struct {
	bdb *bbolt.DB
}

func openBoltStore(path string) (store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	bdb, err := bbolt.Open(boltFile(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("memlite: open %s: %w", path, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(docsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return &boltStore{bdb: bdb}, nil
}

func removeBoltStore(path string) error {
	return os.RemoveAll(path)
}

func (s *boltStore) get(id string) (*record, error) {
	var rec *record
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(docsBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	return rec, err
}

func (s *boltStore) put(recs ...*record) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(docsBucket)
		for _, rec := range recs {
			data, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) purge(id string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(docsBucket).Delete([]byte(id))
	})
}

func (s *boltStore) nextSequence() (uint64, error) {
	var seq uint64
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		var err error
		seq, err = tx.Bucket(docsBucket).NextSequence()
		return err
	})
	return seq, err
}

func (s *boltStore) scan(fn func(*record) error) error {
	return s.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(docsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) close() error {
	return s.bdb.Close()
}
