// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Example worker that echoes every request back, attached to an
// already-running DagBox broker.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DagBox/DagBox/assistant"
	"github.com/DagBox/DagBox/component"
	"github.com/DagBox/DagBox/message"
	"github.com/DagBox/DagBox/transport"
)

type echoWorker struct{}

func (echoWorker) ServiceName() string { return "echo" }

func (echoWorker) Process(req *message.Request) (*message.Reply, error) {
	log.WithField("parts", len(req.Data)).Info("Echoing request")
	return message.ReplyFromRequest(req), nil
}

func main() {
	broker := flag.String("broker", "tcp://127.0.0.1:5555", "address of the DagBox broker")
	timeout := flag.Duration("timeout", 500*time.Millisecond, "receive timeout between heartbeats")
	flag.Parse()

	sock, err := transport.NewDealer(context.Background(), *broker)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to broker")
	}

	a, err := assistant.New(sock, echoWorker{}, *timeout)
	if err != nil {
		log.WithError(err).Fatal("Failed to start assistant")
	}
	runner := component.Run(a)
	log.WithField("broker", *broker).Info("Echo worker running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := runner.Stop(); err != nil {
		log.WithError(err).Error("Worker terminated abnormally")
	}
	sock.Close()
}
