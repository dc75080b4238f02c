// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package datastore implements the persistent key-value workers.
// Records are stored through Badgerhold (github.com/timshannon/badgerhold),
// whose transactions allow many concurrent readers alongside a single
// writer. DagBox runs exactly one Writer and a pool of Readers, all
// sharing one Storage handle.
//
// Request and reply data parts are msgpack-encoded; see WriteRecord
// and ReadRecord for the shapes.
package datastore

import (
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

// sequenceBandwidth is how many keys a bucket's sequence leases at a
// time. Close releases the unused part of each lease; keys leased but
// unused when the process stops without Close are skipped after a
// restart.
const sequenceBandwidth = 64

// Storage is the shared handle to the embedded store. Open it once per
// process and pass it to every Reader and Writer.
type Storage struct {
	store *badgerhold.Store

	mu        sync.Mutex
	sequences map[string]*badger.Sequence
}

// Open creates or opens the store under dir. The process must be able
// to write there.
func Open(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("datastore: %w", err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = log.StandardLogger()

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("datastore: open %s: %w", dir, err)
	}
	log.WithField("dir", dir).Info("Opened datastore")
	return &Storage{
		store:     store,
		sequences: make(map[string]*badger.Sequence),
	}, nil
}

// nextKey returns the bucket's next key from its persistent sequence.
// Keys are monotonically increasing within a bucket.
func (s *Storage) nextKey(bucket string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.sequences[bucket]
	if !ok {
		var err error
		seq, err = s.store.Badger().GetSequence([]byte("sequence/"+bucket), sequenceBandwidth)
		if err != nil {
			return "", fmt.Errorf("datastore: sequence for %q: %w", bucket, err)
		}
		s.sequences[bucket] = seq
	}

	n, err := seq.Next()
	if err != nil {
		return "", fmt.Errorf("datastore: sequence for %q: %w", bucket, err)
	}
	return fmt.Sprintf("%016x", n), nil
}

// Close releases the bucket sequences and the store. Stop all readers
// and the writer first.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs *multierror.Error
	for _, seq := range s.sequences {
		errs = multierror.Append(errs, seq.Release())
	}
	s.sequences = make(map[string]*badger.Sequence)
	errs = multierror.Append(errs, s.store.Close())
	return errs.ErrorOrNil()
}

// Item is the stored form of one datum.
type Item struct {
	Key    string
	Bucket string
	Data   []byte
}

// itemKey namespaces keys by bucket inside the shared store.
func itemKey(bucket, key string) string {
	return bucket + "/" + key
}
