package actor

import "errors"

// ErrActorTerminated indicates that an operation failed because the target
// actor was closed or is in the process of shutting down.
var ErrActorTerminated = errors.New("actor terminated")

// ErrInvalidActorName indicates that an actor name is invalid, e.g. the
// empty string.
var ErrInvalidActorName = errors.New("invalid actor name")

// ErrActorNotFound indicates that no actor is registered under the given
// name in an ActorSystem.
var ErrActorNotFound = errors.New("actor not found")

// ErrKVTypeConflict indicates that a KV-State write attempted to descend
// through a node whose existing value is incompatible with the write (e.g.
// writing a mapping key onto a scalar, or an indexed element onto a
// mapping).
var ErrKVTypeConflict = errors.New("kv-state type conflict")

// ErrKVInvalidPath indicates that a KV-State path failed to parse.
var ErrKVInvalidPath = errors.New("invalid kv-state path")
