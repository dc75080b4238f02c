// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package worker defines the contract implemented by request-processing
// workers.
package worker

import "github.com/DagBox/DagBox/message"

// A Worker processes requests for a single named service. The broker
// and the assistant are oblivious to the body format; data parts are a
// per-service contract between workers and their clients.
type Worker interface {
	// ServiceName returns the service this worker registers under.
	ServiceName() string
	// Process handles one request and produces its reply. The worker
	// must not retain the request after returning; metadata must come
	// back on the reply verbatim.
	Process(req *message.Request) (*message.Reply, error)
}
