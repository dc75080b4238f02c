// Copyright 2026 The DagBox Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datastore

// Record shapes for stored relations between keys. These define the
// msgpack layout of data kept in the store; evaluating them is up to
// the application.

// Fact is a simple relation between keys.
type Fact struct {
	Name string   `msgpack:"name"`
	Keys []string `msgpack:"keys"`
}

// Condition is a relation that needs to be satisfied. Each variable is
// a number referring to a variable of the rule containing the
// condition; positions correspond to key positions in facts.
type Condition struct {
	Name     string `msgpack:"name"`
	Variable []uint `msgpack:"variable"`
}

// Rule proposes a relation (its left-hand side) that holds whenever
// its conditions hold. The conditions are sufficient but not
// necessary: several rules may share a name, and any one of them can
// prove the relation.
type Rule struct {
	Name string `msgpack:"name"`
	// LHS is the number of variables on the left-hand side.
	LHS        uint        `msgpack:"lfs"`
	Conditions []Condition `msgpack:"conditions"`
}
