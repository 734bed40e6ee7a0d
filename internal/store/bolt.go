package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	recordsBucket     = []byte("records")
	transcriptsBucket = []byte("transcripts")
)

// BoltStore keeps records as JSON under the chat key and each chat's
// transcript in its own nested bucket keyed by sequence number.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(transcriptsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) AppendEntry(_ context.Context, chat string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(transcriptsBucket).CreateBucketIfNotExists([]byte(sanitizeKey(chat)))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

func (s *BoltStore) Transcript(_ context.Context, chat string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(transcriptsBucket).Bucket([]byte(sanitizeKey(chat)))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

func (s *BoltStore) GetRecord(_ context.Context, chat string) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get([]byte(sanitizeKey(chat)))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	if rec.Chat == "" {
		return nil, nil
	}
	return &rec, nil
}

func (s *BoltStore) SaveRecord(_ context.Context, rec Record) error {
	if rec.Chat == "" {
		return fmt.Errorf("saving record: empty chat key")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(recordsBucket).Put([]byte(sanitizeKey(rec.Chat)), data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// seqKey encodes big-endian so bolt's byte order matches insertion order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
