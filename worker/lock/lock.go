// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lock implements the in-memory advisory lock worker. Locks
// are plain set membership over keys; they are not persisted and
// vanish with the worker.
package lock

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/DagBox/DagBox/message"
)

// Service is the service name the lock worker registers under.
const Service = "lock"

// Record is one datum of a lock request. Lock true acquires the key,
// false releases it. The matching reply datum is a msgpack bool: true
// when the operation succeeded.
type Record struct {
	Key  string `msgpack:"key"`
	Lock bool   `msgpack:"lock"`
}

// Lock tracks the held keys. Run a single instance; the set is owned
// by the worker's goroutine.
type Lock struct {
	locks map[string]struct{}
}

// New creates a lock worker with no keys held.
func New() *Lock {
	return &Lock{locks: make(map[string]struct{})}
}

// ServiceName implements worker.Worker.
func (*Lock) ServiceName() string { return Service }

// Process attempts every operation in the request and rewrites each
// datum in place with its boolean outcome. Acquiring succeeds if the
// key was free; releasing succeeds if the key was held.
func (l *Lock) Process(req *message.Request) (*message.Reply, error) {
	for i, datum := range req.Data {
		var rec Record
		if err := msgpack.Unmarshal(datum, &rec); err != nil {
			return nil, fmt.Errorf("lock: bad record: %w", err)
		}

		_, held := l.locks[rec.Key]
		var status bool
		if rec.Lock {
			if !held {
				l.locks[rec.Key] = struct{}{}
			}
			status = !held
		} else {
			if held {
				delete(l.locks, rec.Key)
			}
			status = held
		}

		out, err := msgpack.Marshal(status)
		if err != nil {
			return nil, fmt.Errorf("lock: %w", err)
		}
		req.Data[i] = out
	}
	return message.ReplyFromRequest(req), nil
}
