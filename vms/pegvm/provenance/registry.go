// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package provenance records which issuance source first funded each account
// and answers ecosystem eligibility questions from those records.
package provenance

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/pegvm/vms/pegvm/keys"
)

var (
	ErrInvalidSource  = errors.New("invalid issuance source")
	ErrLengthMismatch = errors.New("accounts and sources differ in length")
)

// Record is the persisted form of a single provenance entry.
type Record struct {
	Account ids.ShortID `serialize:"true" json:"account"`
	Source  Source      `serialize:"true" json:"source"`
}

// Snapshot is the persisted form of the registry.
type Snapshot struct {
	Records []Record `serialize:"true" json:"records"`
}

// Registry maps accounts to the source of their first mint. Records are
// written once and never updated.
type Registry struct {
	log     log.Logger
	hashFn  keys.HashFn
	records map[ids.ShortID]Source

	// holder -> digest, safe for concurrent readers
	digests *lru.Cache
}

// NewRegistry returns an empty registry.
func NewRegistry(logger log.Logger, hashFn keys.HashFn, digestCacheSize int) (*Registry, error) {
	digests, err := lru.New(digestCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create digest cache: %w", err)
	}
	return &Registry{
		log:     logger,
		hashFn:  hashFn,
		records: make(map[ids.ShortID]Source),
		digests: digests,
	}, nil
}

// SetIfAbsent records [source] for [account] unless a record already exists.
// It reports whether a record was written. A later source for the same account
// is ignored.
func (r *Registry) SetIfAbsent(account ids.ShortID, source Source) (bool, error) {
	if !source.Valid() {
		return false, ErrInvalidSource
	}
	if existing, ok := r.records[account]; ok {
		if existing != source {
			r.log.Debug("keeping first provenance",
				log.Stringer("account", account),
				log.Stringer("recorded", existing),
				log.Stringer("ignored", source),
			)
		}
		return false, nil
	}
	r.records[account] = source
	return true, nil
}

// Lookup returns the recorded source of [account].
func (r *Registry) Lookup(account ids.ShortID) (Source, bool) {
	source, ok := r.records[account]
	return source, ok
}

// IsEcosystemEligible is true iff [account] has a record with a valid source.
func (r *Registry) IsEcosystemEligible(account ids.ShortID) bool {
	source, ok := r.records[account]
	return ok && source.Valid()
}

// BatchVerify reports, per index, whether the proposed source is valid. The
// stored records are neither read nor written. Cost is linear in the input
// length.
func (r *Registry) BatchVerify(accounts []ids.ShortID, sources []Source) ([]bool, error) {
	if len(accounts) != len(sources) {
		return nil, fmt.Errorf("%w: %d accounts, %d sources", ErrLengthMismatch, len(accounts), len(sources))
	}
	results := make([]bool, len(sources))
	for i, source := range sources {
		results[i] = source.Valid()
	}
	r.log.Debug("batch provenance verified",
		log.Int("holders", len(accounts)),
	)
	return results, nil
}

// VerifyHolderDigest compares the provenance digest of [holder] with
// [expected].
func (r *Registry) VerifyHolderDigest(holder ids.ShortID, expected ids.ID, source Source) (bool, error) {
	if !source.Valid() {
		return false, ErrInvalidSource
	}
	var digest ids.ID
	if cached, ok := r.digests.Get(holder); ok {
		digest = cached.(ids.ID)
	} else {
		digest = keys.HolderDigest(r.hashFn, holder)
		r.digests.Add(holder, digest)
	}
	return digest == expected, nil
}

// Len returns the number of recorded accounts.
func (r *Registry) Len() int {
	return len(r.records)
}

// Snapshot returns the records ordered by account.
func (r *Registry) Snapshot() Snapshot {
	records := make([]Record, 0, len(r.records))
	for account, source := range r.records {
		records = append(records, Record{
			Account: account,
			Source:  source,
		})
	}
	slices.SortFunc(records, func(a, b Record) int {
		return bytes.Compare(a.Account[:], b.Account[:])
	})
	return Snapshot{Records: records}
}

// Restore replaces every record with the contents of [snapshot].
func (r *Registry) Restore(snapshot Snapshot) error {
	records := make(map[ids.ShortID]Source, len(snapshot.Records))
	for _, record := range snapshot.Records {
		if !record.Source.Valid() {
			return fmt.Errorf("%w: account %s", ErrInvalidSource, record.Account)
		}
		records[record.Account] = record.Source
	}
	r.records = records
	return nil
}
