// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datastore

import (
	"errors"
	"fmt"

	"github.com/timshannon/badgerhold/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/DagBox/DagBox/message"
)

// ServiceReader is the service name readers register under.
const ServiceReader = "datastore reader"

// Reader looks records up. Any number of readers may share one
// storage handle.
type Reader struct {
	storage *Storage
}

// NewReader creates a reader over the shared storage handle.
func NewReader(storage *Storage) *Reader {
	return &Reader{storage: storage}
}

// ServiceName implements worker.Worker.
func (*Reader) ServiceName() string { return ServiceReader }

// Process rewrites every datum in place with the stored value its
// record points at, or msgpack nil when the key does not exist, then
// repackages the request as the reply.
func (r *Reader) Process(req *message.Request) (*message.Reply, error) {
	for i, datum := range req.Data {
		var rec ReadRecord
		if err := msgpack.Unmarshal(datum, &rec); err != nil {
			return nil, fmt.Errorf("datastore: bad read record: %w", err)
		}

		var item Item
		err := r.storage.store.Get(itemKey(rec.Bucket, rec.Key), &item)
		switch {
		case errors.Is(err, badgerhold.ErrNotFound):
			missing, merr := msgpack.Marshal(nil)
			if merr != nil {
				return nil, fmt.Errorf("datastore: %w", merr)
			}
			req.Data[i] = missing
		case err != nil:
			return nil, fmt.Errorf("datastore: get %q from %q: %w", rec.Key, rec.Bucket, err)
		default:
			req.Data[i] = item.Data
		}
	}
	return message.ReplyFromRequest(req), nil
}
