// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package assistant

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DagBox/DagBox/message"
)

// fakeConn scripts what the broker sends and captures the assistant's
// output. An exhausted script reads as a receive timeout.
type fakeConn struct {
	in  [][][]byte
	out [][][]byte
}

func (f *fakeConn) RecvParts(time.Duration) ([][]byte, error) {
	if len(f.in) == 0 {
		return nil, nil
	}
	parts := f.in[0]
	f.in = f.in[1:]
	return parts, nil
}

func (f *fakeConn) SendParts(parts [][]byte) error {
	f.out = append(f.out, parts)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) push(msg message.Message) {
	f.in = append(f.in, message.Encode(msg))
}

func (f *fakeConn) sent(t *testing.T) []message.Message {
	t.Helper()
	out := make([]message.Message, len(f.out))
	for i, parts := range f.out {
		msg, err := message.Decode(parts)
		require.NoError(t, err)
		out[i] = msg
	}
	f.out = nil
	return out
}

// echoWorker turns every request into its reply unchanged.
type echoWorker struct{}

func (echoWorker) ServiceName() string { return "echo" }

func (echoWorker) Process(req *message.Request) (*message.Reply, error) {
	return message.ReplyFromRequest(req), nil
}

// failingWorker rejects every request.
type failingWorker struct{}

func (failingWorker) ServiceName() string { return "flaky" }

func (failingWorker) Process(*message.Request) (*message.Reply, error) {
	return nil, errors.New("broken")
}

func newAssistant(t *testing.T, conn *fakeConn) *Assistant {
	t.Helper()
	a, err := New(conn, echoWorker{}, 50*time.Millisecond)
	require.NoError(t, err)

	sent := conn.sent(t)
	require.Len(t, sent, 1)
	reg, ok := sent[0].(*message.Registration)
	require.True(t, ok)
	require.Equal(t, "echo", reg.Service)
	return a
}

func TestRegistersOnStart(t *testing.T) {
	newAssistant(t, &fakeConn{})
}

func TestPingsWhenIdle(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	// Every idle tick emits exactly one ping.
	require.NoError(t, a.RunOnce())
	require.NoError(t, a.RunOnce())

	sent := conn.sent(t)
	require.Len(t, sent, 2)
	assert.Equal(t, message.KindPing, sent[0].Kind())
	assert.Equal(t, message.KindPing, sent[1].Kind())
}

func TestDispatchesRequestsToTheWorker(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	req := message.NewRequest("echo",
		[][]byte{[]byte("m")},
		[][]byte{[]byte("d1"), []byte("d2")})
	req.Client = []byte("client-1")
	conn.push(req)
	require.NoError(t, a.RunOnce())

	sent := conn.sent(t)
	require.Len(t, sent, 1)
	reply, ok := sent[0].(*message.Reply)
	require.True(t, ok)
	assert.Equal(t, []byte("client-1"), reply.Client)
	require.Len(t, reply.Metadata, 1)
	assert.Equal(t, "m", string(reply.Metadata[0]))
	require.Len(t, reply.Data, 2)
	assert.Equal(t, "d1", string(reply.Data[0]))
	assert.Equal(t, "d2", string(reply.Data[1]))
}

func TestAnswersPingWithPong(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	conn.push(message.NewPing())
	require.NoError(t, a.RunOnce())

	sent := conn.sent(t)
	require.Len(t, sent, 1)
	assert.Equal(t, message.KindPong, sent[0].Kind())
}

func TestPongNeedsNoAnswer(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	conn.push(message.PongFromPing(message.NewPing()))
	require.NoError(t, a.RunOnce())

	assert.Empty(t, conn.sent(t))
}

func TestRegistrationAckNeedsNoAnswer(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	conn.push(message.NewRegistration("echo"))
	require.NoError(t, a.RunOnce())

	assert.Empty(t, conn.sent(t))
}

func TestReRegistersOnReconnect(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	conn.push(message.ReconnectFromPing(message.NewPing()))
	require.NoError(t, a.RunOnce())

	sent := conn.sent(t)
	require.Len(t, sent, 1)
	reg, ok := sent[0].(*message.Registration)
	require.True(t, ok)
	assert.Equal(t, "echo", reg.Service)
}

func TestUnexpectedReplyDropped(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	conn.push(message.ReplyFromRequest(message.NewRequest("echo", nil, nil)))
	require.NoError(t, a.RunOnce())

	assert.Empty(t, conn.sent(t))
}

func TestWorkerErrorDropsTheRequest(t *testing.T) {
	conn := &fakeConn{}
	a, err := New(conn, failingWorker{}, 50*time.Millisecond)
	require.NoError(t, err)
	conn.sent(t)

	conn.push(message.NewRequest("flaky", nil, [][]byte{[]byte("d")}))
	require.NoError(t, a.RunOnce())

	// No reply goes out; the client is expected to time out.
	assert.Empty(t, conn.sent(t))
}

func TestMalformedInputDropped(t *testing.T) {
	conn := &fakeConn{}
	a := newAssistant(t, conn)

	conn.in = append(conn.in, [][]byte{{}, []byte("junk")})
	require.NoError(t, a.RunOnce())

	assert.Empty(t, conn.sent(t))
}
