// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists snapshots of the peg VM components.
package state

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"

	"github.com/luxfi/pegvm/vms/pegvm/governance"
	"github.com/luxfi/pegvm/vms/pegvm/ledger"
	"github.com/luxfi/pegvm/vms/pegvm/provenance"
)

var (
	statePrefix = []byte("state")

	ledgerKey     = []byte("ledger_state")
	governanceKey = []byte("gov_state")
	provenanceKey = []byte("provenance_state")

	ErrCodecVersion = errors.New("unexpected codec version")
)

// Store reads and writes component snapshots. Writes are only atomic when the
// underlying database is a versiondb that the caller commits.
type Store struct {
	db database.Database
}

// New returns a store rooted at a fixed prefix of [db].
func New(db database.Database) *Store {
	return &Store{
		db: prefixdb.New(statePrefix, db),
	}
}

// Initialized reports whether a ledger snapshot was ever written.
func (s *Store) Initialized() (bool, error) {
	return s.db.Has(ledgerKey)
}

func (s *Store) PutLedger(snapshot ledger.Snapshot) error {
	return put(s.db, ledgerKey, &snapshot)
}

// GetLedger returns database.ErrNotFound if no snapshot was written.
func (s *Store) GetLedger() (ledger.Snapshot, error) {
	var snapshot ledger.Snapshot
	return snapshot, get(s.db, ledgerKey, &snapshot)
}

func (s *Store) PutGovernance(snapshot governance.Snapshot) error {
	return put(s.db, governanceKey, &snapshot)
}

func (s *Store) GetGovernance() (governance.Snapshot, error) {
	var snapshot governance.Snapshot
	return snapshot, get(s.db, governanceKey, &snapshot)
}

func (s *Store) PutProvenance(snapshot provenance.Snapshot) error {
	return put(s.db, provenanceKey, &snapshot)
}

func (s *Store) GetProvenance() (provenance.Snapshot, error) {
	var snapshot provenance.Snapshot
	return snapshot, get(s.db, provenanceKey, &snapshot)
}

func put(db database.KeyValueWriter, key []byte, value any) error {
	bytes, err := Codec.Marshal(CodecVersion, value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return db.Put(key, bytes)
}

func get(db database.KeyValueReader, key []byte, value any) error {
	bytes, err := db.Get(key)
	if err != nil {
		return err
	}
	version, err := Codec.Unmarshal(bytes, value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	if version != CodecVersion {
		return fmt.Errorf("%w: %s has version %d", ErrCodecVersion, key, version)
	}
	return nil
}
