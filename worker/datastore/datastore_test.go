// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/DagBox/DagBox/message"
)

func openStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage, dir
}

// write stores one value and returns the key it landed under.
func write(t *testing.T, w *Writer, bucket string, value interface{}) string {
	t.Helper()
	raw, err := msgpack.Marshal(value)
	require.NoError(t, err)
	datum, err := msgpack.Marshal(WriteRecord{Bucket: bucket, Data: raw})
	require.NoError(t, err)

	reply, err := w.Process(message.NewRequest(ServiceWriter, nil, [][]byte{datum}))
	require.NoError(t, err)
	require.Len(t, reply.Data, 1)

	var key string
	require.NoError(t, msgpack.Unmarshal(reply.Data[0], &key))
	require.NotEmpty(t, key)
	return key
}

// read fetches one raw stored value.
func read(t *testing.T, r *Reader, bucket, key string) []byte {
	t.Helper()
	datum, err := msgpack.Marshal(ReadRecord{Bucket: bucket, Key: key})
	require.NoError(t, err)

	reply, err := r.Process(message.NewRequest(ServiceReader, nil, [][]byte{datum}))
	require.NoError(t, err)
	require.Len(t, reply.Data, 1)
	return reply.Data[0]
}

func TestWriteThenRead(t *testing.T) {
	storage, _ := openStorage(t)
	writer := NewWriter(storage)
	reader := NewReader(storage)

	key := write(t, writer, "users", "test_user_data")

	var value string
	require.NoError(t, msgpack.Unmarshal(read(t, reader, "users", key), &value))
	assert.Equal(t, "test_user_data", value)
}

func TestMissingKeyReadsAsNil(t *testing.T) {
	storage, _ := openStorage(t)
	reader := NewReader(storage)

	var value interface{}
	require.NoError(t, msgpack.Unmarshal(read(t, reader, "users", "no-such-key"), &value))
	assert.Nil(t, value)
}

func TestBucketsAreIndependent(t *testing.T) {
	storage, _ := openStorage(t)
	writer := NewWriter(storage)
	reader := NewReader(storage)

	key := write(t, writer, "users", "alice")

	// The same key in another bucket does not exist.
	var value interface{}
	require.NoError(t, msgpack.Unmarshal(read(t, reader, "sessions", key), &value))
	assert.Nil(t, value)
}

func TestEveryDatumGetsItsOwnKey(t *testing.T) {
	storage, _ := openStorage(t)
	writer := NewWriter(storage)

	data := make([][]byte, 2)
	for i, v := range []string{"one", "two"} {
		raw, err := msgpack.Marshal(v)
		require.NoError(t, err)
		datum, err := msgpack.Marshal(WriteRecord{Bucket: "b", Data: raw})
		require.NoError(t, err)
		data[i] = datum
	}

	reply, err := writer.Process(message.NewRequest(ServiceWriter, nil, data))
	require.NoError(t, err)
	require.Len(t, reply.Data, 2)

	var first, second string
	require.NoError(t, msgpack.Unmarshal(reply.Data[0], &first))
	require.NoError(t, msgpack.Unmarshal(reply.Data[1], &second))
	assert.NotEqual(t, first, second)
}

func TestKeysAreMonotonicWithinABucket(t *testing.T) {
	storage, _ := openStorage(t)
	writer := NewWriter(storage)

	var previous string
	for _, v := range []string{"one", "two", "three"} {
		key := write(t, writer, "b", v)
		assert.Greater(t, key, previous)
		previous = key
	}
}

func TestDataSurvivesReopening(t *testing.T) {
	dir := t.TempDir()

	storage, err := Open(dir)
	require.NoError(t, err)
	key := write(t, NewWriter(storage), "users", "durable")
	require.NoError(t, storage.Close())

	storage, err = Open(dir)
	require.NoError(t, err)
	defer storage.Close()

	var value string
	require.NoError(t, msgpack.Unmarshal(read(t, NewReader(storage), "users", key), &value))
	assert.Equal(t, "durable", value)
}

func TestStructuredRecordsRoundTrip(t *testing.T) {
	storage, _ := openStorage(t)
	writer := NewWriter(storage)
	reader := NewReader(storage)

	fact := Fact{Name: "parent", Keys: []string{"alice", "bob"}}
	key := write(t, writer, "facts", fact)

	var got Fact
	require.NoError(t, msgpack.Unmarshal(read(t, reader, "facts", key), &got))
	assert.Equal(t, fact, got)
}

func TestMalformedRecordFailsTheRequest(t *testing.T) {
	storage, _ := openStorage(t)

	req := message.NewRequest(ServiceWriter, nil, [][]byte{[]byte("\xc1garbage")})
	_, err := NewWriter(storage).Process(req)
	assert.Error(t, err)
}
