// Package occupancy provides the occupancy state engine for Gray Logic.
//
// The engine decides, per location of a small location tree, whether the
// location is occupied. It is driven by timestamped signals (motion, presence,
// media activity) and explicit commands (force-vacate, lock). It is a pure
// function of its inputs: it never reads a clock, never starts timers and
// never performs I/O. Every entry point takes "now" as a parameter.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                    Engine (engine.go)                    │
//	│  ┌────────────────┐   ┌────────────────┐                 │
//	│  │ config index   │   │ runtime states │                 │
//	│  │ + children map │   │ (one per loc)  │                 │
//	│  └────────────────┘   └────────────────┘                 │
//	│          │                     ▲                         │
//	│          ▼                     │                         │
//	│  ┌──────────────────────────────────────────────┐       │
//	│  │ evaluate (evaluate.go)                        │       │
//	│  │  1. lock gate                                 │       │
//	│  │  2. apply event to provisional fields         │       │
//	│  │  3. upward propagation timer extension        │       │
//	│  │  4. occupancy derivation (strategy)           │       │
//	│  │  5. vacancy cleanup                           │       │
//	│  │  6. commit + transition                       │       │
//	│  └──────────────────────────────────────────────┘       │
//	│          │ changed?                                      │
//	│          ▼                                               │
//	│   upward (contributing parent) / downward (followers)    │
//	└─────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - LocationConfig: static per-location configuration
//   - State: immutable runtime snapshot of one location
//   - Event: a signal or command addressed to one location
//   - Transition: record of one state replacement
//   - Result: transitions plus the next instant the host must call back
//   - Snapshot: plain serialisable form of all non-default states
//
// # Scheduling
//
// Time passing is represented by CheckTimeouts. The host asks NextExpiration
// (or reads Result.NextExpiration) and arranges its own callback.
//
// # Thread Safety
//
// Engine is NOT safe for concurrent use. It assumes exactly one writer; hosts
// that receive input from several goroutines must serialise access externally
// (see internal/tracker).
package occupancy
