// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datastore

import "github.com/vmihailenco/msgpack/v5"

// WriteRecord is one datum of a write request: the value to store and
// the bucket to store it under. The matching reply datum is the key
// the value was stored at, as a msgpack string.
type WriteRecord struct {
	Bucket string             `msgpack:"bucket"`
	Data   msgpack.RawMessage `msgpack:"data"`
}

// ReadRecord is one datum of a read request. The matching reply datum
// is the stored value, or msgpack nil when the key does not exist.
type ReadRecord struct {
	Bucket string `msgpack:"bucket"`
	Key    string `msgpack:"key"`
}
