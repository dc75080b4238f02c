// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dagbox embeds the complete service bus: the broker, the
// datastore writer and a pool of datastore readers, each on its own
// goroutine, wired together over the chosen transport. Applications
// construct a DagBox, attach any extra workers, and talk to it through
// clients connected to Address.
package dagbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/DagBox/DagBox/assistant"
	"github.com/DagBox/DagBox/broker"
	"github.com/DagBox/DagBox/client"
	"github.com/DagBox/DagBox/component"
	"github.com/DagBox/DagBox/transport"
	"github.com/DagBox/DagBox/worker"
	"github.com/DagBox/DagBox/worker/datastore"
)

// Transport selects how components reach the broker.
type Transport int

const (
	// Inprocess keeps everything inside one process; fastest.
	Inprocess Transport = iota
	// IPC lets multiple processes on one machine share the bus.
	IPC
	// TCP lets components connect across the network.
	TCP
)

func (t Transport) scheme() string {
	switch t {
	case IPC:
		return "ipc"
	case TCP:
		return "tcp"
	}
	return "inproc"
}

// Defaults applied by New for zero Config fields.
const (
	DefaultReaderCount    = 4
	DefaultWorkerTimeout  = 500 * time.Millisecond
	DefaultTransportDelay = 100 * time.Millisecond
)

// Config parameterizes a DagBox instance. The zero value of every
// field except DataDir selects a sensible default.
type Config struct {
	// DataDir is where the datastore persists. The process must be
	// able to write there.
	DataDir string
	// Transport is the transport components connect over.
	Transport Transport
	// Address is the broker's name on the transport, without the
	// scheme part. Empty picks a random unique name.
	Address string
	// ReaderCount is how many datastore readers to start. More
	// readers use disk throughput more effectively at the cost of a
	// goroutine each.
	ReaderCount int
	// WorkerTimeout is how long a worker may stay idle before pinging
	// the broker. It should exceed the time an average request takes.
	WorkerTimeout time.Duration
	// TransportDelay is the time a message roughly takes to cross the
	// transport. The broker adds it to WorkerTimeout so replies in
	// flight are not mistaken for dead workers.
	TransportDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReaderCount == 0 {
		c.ReaderCount = DefaultReaderCount
	}
	if c.WorkerTimeout == 0 {
		c.WorkerTimeout = DefaultWorkerTimeout
	}
	if c.TransportDelay == 0 {
		c.TransportDelay = DefaultTransportDelay
	}
	return c
}

// handle pairs a running component with the socket it owns.
type handle struct {
	runner *component.Runner
	sock   *transport.Socket
}

func (h *handle) stop() error {
	var errs *multierror.Error
	errs = multierror.Append(errs, h.runner.Stop())
	errs = multierror.Append(errs, h.sock.Close())
	return errs.ErrorOrNil()
}

// DagBox owns a running bus. It cannot be restarted after Close.
type DagBox struct {
	address string
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc
	storage *datastore.Storage
	broker  *handle
	writer  *handle

	mu      sync.Mutex
	readers []*handle
	extra   []*handle
}

// New starts a DagBox instance: it opens the datastore, binds the
// broker, and starts the datastore writer and ReaderCount readers.
func New(cfg Config) (*DagBox, error) {
	cfg = cfg.withDefaults()

	name := cfg.Address
	if name == "" {
		name = uuid.NewString()
	}
	address := fmt.Sprintf("%s://%s", cfg.Transport.scheme(), name)

	storage, err := datastore.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &DagBox{
		address: address,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		storage: storage,
	}

	brokerSock, err := transport.NewRouter(ctx, address)
	if err != nil {
		d.Close()
		return nil, err
	}
	opts := broker.DefaultOptions()
	opts.WorkerTimeout = cfg.WorkerTimeout + cfg.TransportDelay
	d.broker = &handle{
		runner: component.Run(broker.New(brokerSock, opts)),
		sock:   brokerSock,
	}

	d.writer, err = d.startWorker(datastore.NewWriter(storage))
	if err != nil {
		d.Close()
		return nil, err
	}

	if err := d.AddReaders(cfg.ReaderCount); err != nil {
		d.Close()
		return nil, err
	}

	log.WithField("address", address).Info("DagBox started")
	return d, nil
}

// startWorker connects an assistant-wrapped worker to the broker.
func (d *DagBox) startWorker(w worker.Worker) (*handle, error) {
	sock, err := transport.NewDealer(d.ctx, d.address)
	if err != nil {
		return nil, err
	}
	a, err := assistant.New(sock, w, d.cfg.WorkerTimeout)
	if err != nil {
		sock.Close()
		return nil, err
	}
	return &handle{runner: component.Run(a), sock: sock}, nil
}

// Address returns the broker's full address, scheme included. Workers
// and clients started outside this instance connect here.
func (d *DagBox) Address() string {
	return d.address
}

// StartWorker attaches an extra worker to the bus. The worker runs
// until Close.
func (d *DagBox) StartWorker(w worker.Worker) error {
	h, err := d.startWorker(w)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.extra = append(d.extra, h)
	d.mu.Unlock()
	return nil
}

// Client connects a new request client to this instance's broker.
// Close the client when done with it.
func (d *DagBox) Client() (*client.Client, error) {
	sock, err := transport.NewDealer(d.ctx, d.address)
	if err != nil {
		return nil, err
	}
	return client.New(sock), nil
}

// AddReaders starts count more datastore readers.
func (d *DagBox) AddReaders(count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ; count > 0; count-- {
		h, err := d.startWorker(datastore.NewReader(d.storage))
		if err != nil {
			return err
		}
		d.readers = append(d.readers, h)
	}
	return nil
}

// RemoveReaders stops count datastore readers, the most recently
// started first. Stopping more readers than exist stops them all.
func (d *DagBox) RemoveReaders(count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs *multierror.Error
	for ; count > 0 && len(d.readers) > 0; count-- {
		last := len(d.readers) - 1
		errs = multierror.Append(errs, d.readers[last].stop())
		d.readers = d.readers[:last]
	}
	return errs.ErrorOrNil()
}

// ReaderCount returns the number of running datastore readers.
func (d *DagBox) ReaderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.readers)
}

// Close stops every component, in worker-then-broker order, and closes
// the datastore. Pending requests inside the broker are discarded.
func (d *DagBox) Close() error {
	var errs *multierror.Error

	d.mu.Lock()
	stops := append(d.extra, d.readers...)
	d.extra = nil
	d.readers = nil
	d.mu.Unlock()

	for _, h := range stops {
		errs = multierror.Append(errs, h.stop())
	}
	if d.writer != nil {
		errs = multierror.Append(errs, d.writer.stop())
		d.writer = nil
	}
	if d.broker != nil {
		errs = multierror.Append(errs, d.broker.stop())
		d.broker = nil
	}
	d.cancel()
	if d.storage != nil {
		errs = multierror.Append(errs, d.storage.Close())
		d.storage = nil
	}
	return errs.ErrorOrNil()
}
