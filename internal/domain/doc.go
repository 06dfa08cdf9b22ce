// Package domain contains the core entities and value objects for pulsesync.
//
// This package represents the innermost layer of the architecture. It has no
// dependencies on infrastructure concerns (HTTP, websocket, logging) and
// contains only the data model and its invariants.
//
// # Entities
//
//   - [Frame]: one captured snapshot of a tmux pane, with identity and content hash
//   - [SequenceStamp]: (epoch, seq, wallClock) tuple for staleness rejection
//   - [StampGate]: the receiver-side acceptance rule over SequenceStamps
//   - [BackoffState]: the counters the scheduler turns into a poll interval
//   - [NavigationState]: active target plus the learned window index base map
//   - [Envelope]: the wire payload carried over both transport tiers
//
// Entities are immutable after construction where practical; a Frame is never
// mutated, only superseded by the next capture.
package domain
