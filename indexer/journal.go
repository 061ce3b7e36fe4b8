// Copyright 2026 Agora Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package indexer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

var journalKeyPrefix = []byte("journal/")

// JournalEntry is one appended event record
type JournalEntry struct {
	Sequence uint64          `json:"sequence"`
	Kind     string          `json:"kind"`
	Time     time.Time       `json:"time"`
	Payload  json.RawMessage `json:"payload"`
}

// Journal is an append-only record of every governance event the indexer
// has observed, stored in badger. It exists so the queryable store can be
// rebuilt from raw observations.
type Journal struct {
	db       *badger.DB
	logger   *slog.Logger
	gcTicker *time.Ticker
	gcStopCh chan struct{}
	gcWg     sync.WaitGroup
	seq      uint64
	seqMutex sync.Mutex
}

// NewJournal creates a journal. Uses an in-memory badger instance if
// dataDir is empty; in-memory journals skip value-log GC.
func NewJournal(dataDir string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	j := &Journal{
		logger: logger,
	}
	var journalDb *badger.DB
	var err error
	if dataDir == "" {
		badgerOpts := badger.DefaultOptions("").
			WithLogger(newBadgerLogger(logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
		journalDb, err = badger.Open(badgerOpts)
		if err != nil {
			return nil, err
		}
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		journalDir := filepath.Join(dataDir, "journal")
		badgerOpts := badger.DefaultOptions(journalDir).
			WithLogger(newBadgerLogger(logger)).
			WithLoggingLevel(badger.WARNING).
			WithCompression(options.Snappy)
		journalDb, err = badger.Open(badgerOpts)
		if err != nil {
			return nil, err
		}
	}
	j.db = journalDb
	if err := j.loadSequence(); err != nil {
		journalDb.Close()
		return nil, err
	}
	if dataDir != "" {
		j.gcTicker = time.NewTicker(5 * time.Minute)
		j.gcStopCh = make(chan struct{})
		j.gcWg.Add(1)
		go j.valueLogGc(j.gcTicker, j.gcStopCh)
	}
	return j, nil
}

func (j *Journal) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer j.gcWg.Done()
	for {
		select {
		case <-t.C:
		again:
			err := j.db.RunValueLogGC(0.5)
			if err != nil {
				if !errors.Is(err, badger.ErrNoRewrite) {
					j.logger.Warn(
						fmt.Sprintf("journal DB: GC failure: %s", err),
						"component", "indexer",
					)
				}
			} else {
				// Run it again if it just ran successfully
				goto again
			}
		case <-stop:
			return
		}
	}
}

// loadSequence recovers the next sequence number from the highest
// existing key
func (j *Journal) loadSequence() error {
	return j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.IteratorOptions{
			Prefix:  journalKeyPrefix,
			Reverse: true,
		}
		iter := txn.NewIterator(iterOpts)
		defer iter.Close()
		// Seek to the last possible key under the prefix
		seekKey := append([]byte{}, journalKeyPrefix...)
		for range 8 {
			seekKey = append(seekKey, 0xff)
		}
		iter.Seek(seekKey)
		if !iter.ValidForPrefix(journalKeyPrefix) {
			return nil
		}
		key := iter.Item().Key()
		if len(key) != len(journalKeyPrefix)+8 {
			return fmt.Errorf("malformed journal key: %x", key)
		}
		j.seq = binary.BigEndian.Uint64(key[len(journalKeyPrefix):])
		return nil
	})
}

func journalKey(seq uint64) []byte {
	key := make([]byte, 0, len(journalKeyPrefix)+8)
	key = append(key, journalKeyPrefix...)
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

// Append writes an event record to the journal
func (j *Journal) Append(kind string, payload any) error {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal journal payload: %w", err)
	}
	j.seqMutex.Lock()
	defer j.seqMutex.Unlock()
	entry := JournalEntry{
		Sequence: j.seq + 1,
		Kind:     kind,
		Time:     time.Now().UTC(),
		Payload:  rawPayload,
	}
	value, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(entry.Sequence), value)
	})
	if err != nil {
		return err
	}
	j.seq = entry.Sequence
	return nil
}

// Entries returns up to limit journal entries starting at the given
// sequence, in order. A limit of 0 means no limit.
func (j *Journal) Entries(fromSeq uint64, limit int) ([]JournalEntry, error) {
	var ret []JournalEntry
	err := j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.IteratorOptions{
			Prefix:         journalKeyPrefix,
			PrefetchValues: true,
			PrefetchSize:   100,
		}
		iter := txn.NewIterator(iterOpts)
		defer iter.Close()
		for iter.Seek(journalKey(fromSeq)); iter.ValidForPrefix(journalKeyPrefix); iter.Next() {
			if limit > 0 && len(ret) >= limit {
				break
			}
			var entry JournalEntry
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			ret = append(ret, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Sequence returns the sequence number of the newest entry
func (j *Journal) Sequence() uint64 {
	j.seqMutex.Lock()
	defer j.seqMutex.Unlock()
	return j.seq
}

func (j *Journal) Close() error {
	if j.gcTicker != nil {
		j.gcTicker.Stop()
		if j.gcStopCh != nil {
			close(j.gcStopCh)
			j.gcStopCh = nil
		}
		// Wait for GC goroutine to finish
		j.gcWg.Wait()
		j.gcTicker = nil
	}
	return j.db.Close()
}

// badgerLogger adapts slog to the badger logging interface
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{
		logger: logger.With("component", "indexer"),
	}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Info(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}
