// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil provides endpoint helpers for DagBox tests.
package testutil

import (
	"fmt"
	"net"
	"sync/atomic"
)

var counter int64

// GetAvailablePort returns a TCP port that was free on the loopback
// interface a moment ago. The port is released before returning, so
// the caller must bind it promptly.
func GetAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("testutil: %w", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// GetTestEndpoint returns a loopback tcp endpoint with an available
// port.
func GetTestEndpoint() (string, error) {
	port, err := GetAvailablePort()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tcp://127.0.0.1:%d", port), nil
}

// InprocEndpoint returns an inproc endpoint unique within the test
// binary.
func InprocEndpoint(name string) string {
	return fmt.Sprintf("inproc://%s-%d", name, atomic.AddInt64(&counter, 1))
}
