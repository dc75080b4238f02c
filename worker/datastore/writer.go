// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datastore

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/DagBox/DagBox/message"
)

// ServiceWriter is the service name the writer registers under.
const ServiceWriter = "datastore writer"

// Writer stores records. Run exactly one per process; writes are
// serialized by the single writer thread, while readers run
// concurrently on the store's transactional isolation.
type Writer struct {
	storage *Storage
}

// NewWriter creates a writer over the shared storage handle.
func NewWriter(storage *Storage) *Writer {
	return &Writer{storage: storage}
}

// ServiceName implements worker.Worker.
func (*Writer) ServiceName() string { return ServiceWriter }

// Process stores every datum and rewrites it in place with the key it
// was stored under, then repackages the request as the reply.
func (w *Writer) Process(req *message.Request) (*message.Reply, error) {
	for i, datum := range req.Data {
		var rec WriteRecord
		if err := msgpack.Unmarshal(datum, &rec); err != nil {
			return nil, fmt.Errorf("datastore: bad write record: %w", err)
		}

		key, err := w.storage.nextKey(rec.Bucket)
		if err != nil {
			return nil, err
		}
		item := Item{
			Key:    key,
			Bucket: rec.Bucket,
			Data:   rec.Data,
		}
		if err := w.storage.store.Insert(itemKey(item.Bucket, item.Key), item); err != nil {
			return nil, fmt.Errorf("datastore: insert into %q: %w", item.Bucket, err)
		}

		out, err := msgpack.Marshal(item.Key)
		if err != nil {
			return nil, fmt.Errorf("datastore: %w", err)
		}
		req.Data[i] = out
		log.WithFields(log.Fields{
			"bucket": item.Bucket,
			"key":    item.Key,
		}).Debug("Stored datum")
	}
	return message.ReplyFromRequest(req), nil
}
