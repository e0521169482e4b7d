// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"sync"
	"time"

	"github.com/luxfi/log"
)

var (
	_ Sink = NoOp{}
	_ Sink = Multi(nil)
	_ Sink = (*LogSink)(nil)
	_ Sink = (*Recorder)(nil)
	_ Sink = (*Buffer)(nil)
)

// Sink receives emitted events. Emit must not fail and must not call back
// into the emitter.
type Sink interface {
	Emit(Event)
}

type NoOp struct{}

func (NoOp) Emit(Event) {}

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Buffer holds events until they are flushed or dropped. It is not safe for
// concurrent use.
type Buffer struct {
	events []Event
}

func (b *Buffer) Emit(e Event) {
	b.events = append(b.events, e)
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Flush emits the buffered events to [sink] in order and empties the buffer.
func (b *Buffer) Flush(sink Sink) {
	for _, e := range b.events {
		sink.Emit(e)
	}
	b.Reset()
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	clear(b.events)
	b.events = b.events[:0]
}

// LogSink writes every event to a logger.
type LogSink struct {
	log log.Logger
}

func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) Emit(e Event) {
	switch e := e.(type) {
	case Minted:
		s.log.Info("minted",
			log.Stringer("to", e.To),
			log.Uint64("amount", e.Amount),
			log.Stringer("source", e.Source),
		)
	case Transferred:
		s.log.Info("transferred",
			log.Stringer("from", e.From),
			log.Stringer("to", e.To),
			log.Uint64("amount", e.Amount),
		)
	case TransferConfirmed:
		s.log.Debug("transfer confirmed",
			log.Uint64("sequence", e.Sequence),
			log.Stringer("digest", e.Digest),
		)
	case CollateralLocked:
		s.log.Info("collateral locked",
			log.Uint64("amount", e.Amount),
			log.Uint64("total", e.Total),
		)
	case Staked:
		s.log.Info("staked",
			log.Stringer("staker", e.Staker),
			log.Uint64("amount", e.Amount),
			log.Uint64("total", e.Total),
		)
	case ProposalCreated:
		s.log.Info("proposal created",
			log.Uint32("proposalID", e.ProposalID),
			log.String("title", e.Title),
			log.Int("score", int(e.Score)),
		)
	case VoteCast:
		s.log.Info("vote cast",
			log.Uint32("proposalID", e.ProposalID),
			log.Stringer("voter", e.Voter),
			log.Bool("approve", e.Approve),
		)
	case ProposalFinalized:
		s.log.Info("proposal finalized",
			log.Uint32("proposalID", e.ProposalID),
			log.Bool("passed", e.Passed),
			log.Uint32("votesFor", e.VotesFor),
			log.Uint32("votesAgainst", e.VotesAgainst),
		)
	case BridgeRequested:
		s.log.Info("bridge requested",
			log.Stringer("holder", e.Holder),
			log.Uint64("amount", e.Amount),
			log.String("targetChain", e.TargetChain),
		)
	default:
		s.log.Warn("unknown event",
			log.Stringer("kind", e.Kind()),
		)
	}
}

// Clock is the time source of a Recorder.
type Clock interface {
	Time() time.Time
}

// Record is an event with the time it was observed.
type Record struct {
	Time  time.Time
	Event Event
}

// Recorder keeps every emitted event in memory, bounded to the most recent
// [limit] records.
type Recorder struct {
	clock Clock
	limit int

	mu      sync.RWMutex
	records []Record
}

func NewRecorder(clock Clock, limit int) *Recorder {
	return &Recorder{
		clock: clock,
		limit: limit,
	}
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, Record{
		Time:  r.clock.Time(),
		Event: e,
	})
	if r.limit > 0 && len(r.records) > r.limit {
		r.records = append(r.records[:0], r.records[len(r.records)-r.limit:]...)
	}
}

// Records returns up to [limit] of the most recent records, oldest first. A
// non-positive limit returns all of them.
func (r *Recorder) Records(limit int) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if limit > 0 && len(r.records) > limit {
		start = len(r.records) - limit
	}
	out := make([]Record, len(r.records)-start)
	copy(out, r.records[start:])
	return out
}
