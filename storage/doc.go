// Package storage defines the persistence interfaces for duograph's three
// stores: documents and chunks with collection membership (the vector side),
// episodes, entities and facts (the graph side), and crawl session records.
//
// The interfaces are defined here, next to the serialization helpers and
// sentinel errors they share; storage/badger provides the BadgerDB
// implementation. Consumers depend on these interfaces only.
package storage
