// Package helpers holds small utilities shared across cmd/netperf and
// internal/engine that don't warrant their own package: correlation-id
// generation for log lines, using uuid.New().String() as the token
// source.
package helpers

import (
    "github.com/google/uuid"
)

// IdGen hands out a fixed-size block of unique correlation tokens, one
// per parallel flow, so log lines from concurrent traffic goroutines can
// be told apart without relying on interleaved transfer ids alone.
type IdGen struct {
    Block       [ ]string
    Count       int
    Initialized bool
}

func NewIdGenerator( )( *IdGen ) {
    return &IdGen{ }
}

// InitIdBlock allocates blockCount fresh UUIDv4 correlation tokens, one
// per parallel flow in a client run. A second call is a no-op, matching
// the once-per-run allocation a group's flows share.
func ( idGen *IdGen )InitIdBlock( blockCount int )( error ) {
    if idGen.Initialized {
        return nil
    }

    idGen.Count = blockCount
    idGen.Block = make( [ ]string, idGen.Count )

    for i := 0; i < idGen.Count; i++ {
        idGen.Block[ i ] = uuid.New( ).String( )
    }

    idGen.Initialized = true
    return nil
}

// TokenFor returns the correlation token for the given zero-based flow
// index, or the empty string if the block was never initialized or the
// index is out of range.
func ( idGen *IdGen )TokenFor( index int )( string ) {
    if !idGen.Initialized || index < 0 || index >= idGen.Count {
        return ""
    }
    return idGen.Block[ index ]
}
