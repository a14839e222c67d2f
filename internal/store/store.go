// Package store keeps a history of dispatched scripts and decoded telemetry in BoltDB.
package store

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
	"go.etcd.io/bbolt"

	"AstroGate/internal/model"
)

var (
	bucketScripts   = []byte("scripts")
	bucketTelemetry = []byte("telemetry")
)

// ErrNotFound is returned when a bucket holds no records.
var ErrNotFound = errors.New("no records")

// ScriptRecord describes one published script command.
type ScriptRecord struct {
	ID      string            `json:"id" msgpack:"id"`
	Time    time.Time         `json:"time" msgpack:"time"`
	Name    string            `json:"name" msgpack:"name"`
	Kind    model.CommandKind `json:"kind" msgpack:"kind"`
	File    string            `json:"script_file" msgpack:"file"`
	TextLen int               `json:"text_len" msgpack:"text_len"`
	Digest  string            `json:"digest" msgpack:"digest"`
}

// SampleRecord is one stored telemetry sample.
type SampleRecord struct {
	ID     string               `json:"id" msgpack:"id"`
	Time   time.Time            `json:"time" msgpack:"time"`
	Source string               `json:"source" msgpack:"source"`
	Sample model.SenseHatSample `json:"sample" msgpack:"sample"`
}

// Store wraps a BoltDB file.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketScripts, bucketTelemetry} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init store buckets: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Digest returns the hex BLAKE3-256 digest of a script text.
func Digest(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// RecordScript appends a published script command.
func (s *Store) RecordScript(name string, cmd model.ScriptCommand) (ScriptRecord, error) {
	rec := ScriptRecord{
		ID:   uuid.New().String(),
		Time: s.now().UTC(),
		Name: name,
		Kind: cmd.Command,
		File: cmd.ScriptFile,
	}
	if cmd.Command == model.RunScriptText {
		rec.TextLen = len(cmd.ScriptText)
		rec.Digest = Digest(cmd.ScriptText)
	}
	return rec, s.appendRecord(bucketScripts, rec)
}

// RecordSample appends a decoded telemetry sample.
func (s *Store) RecordSample(source string, sample model.SenseHatSample) (SampleRecord, error) {
	rec := SampleRecord{
		ID:     uuid.New().String(),
		Time:   s.now().UTC(),
		Source: source,
		Sample: sample,
	}
	return rec, s.appendRecord(bucketTelemetry, rec)
}

// LatestSample returns the newest telemetry sample.
func (s *Store) LatestSample() (SampleRecord, error) {
	recs, err := s.Samples(1)
	if err != nil {
		return SampleRecord{}, err
	}
	if len(recs) == 0 {
		return SampleRecord{}, ErrNotFound
	}
	return recs[0], nil
}

// Samples returns up to limit telemetry samples, newest first.
func (s *Store) Samples(limit int) ([]SampleRecord, error) {
	var out []SampleRecord
	err := s.scanNewest(bucketTelemetry, limit, func(v []byte) error {
		var rec SampleRecord
		if err := msgpack.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Scripts returns up to limit script records, newest first.
func (s *Store) Scripts(limit int) ([]ScriptRecord, error) {
	var out []ScriptRecord
	err := s.scanNewest(bucketScripts, limit, func(v []byte) error {
		var rec ScriptRecord
		if err := msgpack.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *Store) appendRecord(bucket []byte, rec any) error {
	v, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", bucket, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), v)
	})
}

func (s *Store) scanNewest(bucket []byte, limit int, fn func(v []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		n := 0
		for k, v := c.Last(); k != nil && (limit <= 0 || n < limit); k, v = c.Prev() {
			if err := fn(v); err != nil {
				return fmt.Errorf("decode %s record %d: %w", bucket, binary.BigEndian.Uint64(k), err)
			}
			n++
		}
		return nil
	})
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
