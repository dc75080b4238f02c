// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package component runs long-lived DagBox components, each on its own
// goroutine, with a stop-and-join lifecycle.
package component

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// A Component is driven by calling RunOnce repeatedly. One call
// performs a single bounded step, typically one receive with timeout
// and its handling. A returned error is fatal: the runner records it
// and exits the loop.
type Component interface {
	RunOnce() error
}

// Runner owns the goroutine a component runs on. A Runner must not be
// copied, and cannot be restarted once stopped.
type Runner struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	err      error
}

// Run starts the component on its own goroutine and returns the handle
// that stops it.
func Run(c Component) *Runner {
	r := &Runner{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go r.loop(c)
	return r
}

func (r *Runner) loop(c Component) {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		if err := c.RunOnce(); err != nil {
			log.WithError(err).Error("Component terminated")
			r.err = err
			return
		}
	}
}

// Stop asks the component to stop, waits for the current step to
// finish and the goroutine to exit, and returns the error that
// terminated the loop early, if any. Stop is idempotent.
func (r *Runner) Stop() error {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
	return r.err
}
