// Package storage keeps a local journal of sessions and the commands they
// sent, backed by bbolt.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	commandsBucket = "commands"
	sessionsBucket = "sessions"

	DefaultMaxCommands = 10000
)

// CommandRecord is one command send attempt.
type CommandRecord struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Time      time.Time     `json:"time"`
	Code      uint8         `json:"code"`
	Name      string        `json:"name"`
	Payload   string        `json:"payload"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

func (r CommandRecord) OK() bool {
	return r.Error == ""
}

// SessionRecord describes a session's lifetime.
type SessionRecord struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	Started   time.Time `json:"started"`
	Stopped   time.Time `json:"stopped,omitempty"`
	State     string    `json:"state"`
}

type Journal struct {
	db          *bolt.DB
	maxCommands uint64
}

// Open opens (or creates) the journal at path and makes sure its buckets
// exist. maxCommands bounds the number of command records kept; zero uses
// DefaultMaxCommands.
func Open(path string, maxCommands int) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{commandsBucket, sessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare journal buckets: %w", err)
	}
	if maxCommands <= 0 {
		maxCommands = DefaultMaxCommands
	}
	return &Journal{db: db, maxCommands: uint64(maxCommands)}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// RecordCommand appends rec and drops the oldest records beyond the limit.
func (j *Journal) RecordCommand(rec CommandRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(commandsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		if seq <= j.maxCommands {
			return nil
		}
		cutoff := seq - j.maxCommands
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) <= cutoff; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentCommands returns up to limit records, newest first.
func (j *Journal) RecentCommands(limit int) ([]CommandRecord, error) {
	var out []CommandRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(commandsBucket)).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var rec CommandRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt command record %x: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// RecordSession stores or replaces rec.
func (j *Journal) RecordSession(rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(rec.ID), data)
	})
}

func (j *Journal) Session(id string) (SessionRecord, bool, error) {
	var rec SessionRecord
	var found bool
	err := j.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(sessionsBucket)).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	return rec, found, err
}
