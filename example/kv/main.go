// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Example embedding: start a complete DagBox instance, store a value
// through the bus, read it back, and take an advisory lock.
package main

import (
	"flag"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	dagbox "github.com/DagBox/DagBox"
	"github.com/DagBox/DagBox/client"
	"github.com/DagBox/DagBox/worker/datastore"
	"github.com/DagBox/DagBox/worker/lock"
)

func main() {
	dataDir := flag.String("data", "./dagbox-data", "directory for the datastore")
	flag.Parse()

	d, err := dagbox.New(dagbox.Config{DataDir: *dataDir})
	if err != nil {
		log.WithError(err).Fatal("Failed to start DagBox")
	}
	defer d.Close()

	if err := d.StartWorker(lock.New()); err != nil {
		log.WithError(err).Fatal("Failed to start lock worker")
	}

	c, err := d.Client()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect client")
	}
	defer c.Close()

	key := store(c, "users", "alice")
	log.WithField("key", key).Info("Stored value")
	log.WithField("value", load(c, "users", key)).Info("Read value back")

	if acquire(c, "users:"+key) {
		log.Info("Lock acquired")
	}
}

// call retries until the workers have registered and a reply arrives.
func call(c *client.Client, service string, datum []byte) []byte {
	for {
		reply, err := c.Call(service, nil, [][]byte{datum}, time.Second)
		if err != nil {
			log.WithError(err).Fatal("Request failed")
		}
		if reply != nil {
			return reply.Data[0]
		}
		log.WithField("service", service).Info("No reply yet, retrying")
	}
}

func store(c *client.Client, bucket, value string) string {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		log.WithError(err).Fatal("Failed to encode value")
	}
	datum, err := msgpack.Marshal(datastore.WriteRecord{Bucket: bucket, Data: raw})
	if err != nil {
		log.WithError(err).Fatal("Failed to encode record")
	}

	var key string
	if err := msgpack.Unmarshal(call(c, datastore.ServiceWriter, datum), &key); err != nil {
		log.WithError(err).Fatal("Failed to decode key")
	}
	return key
}

func load(c *client.Client, bucket, key string) string {
	datum, err := msgpack.Marshal(datastore.ReadRecord{Bucket: bucket, Key: key})
	if err != nil {
		log.WithError(err).Fatal("Failed to encode record")
	}

	var value string
	if err := msgpack.Unmarshal(call(c, datastore.ServiceReader, datum), &value); err != nil {
		log.WithError(err).Fatal("Failed to decode value")
	}
	return value
}

func acquire(c *client.Client, key string) bool {
	datum, err := msgpack.Marshal(lock.Record{Key: key, Lock: true})
	if err != nil {
		log.WithError(err).Fatal("Failed to encode record")
	}

	var ok bool
	if err := msgpack.Unmarshal(call(c, lock.Service, datum), &ok); err != nil {
		log.WithError(err).Fatal("Failed to decode status")
	}
	return ok
}
