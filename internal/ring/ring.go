// Package ring implements a lock-free single-producer/single-consumer
// packet ring: a bounded FIFO of PacketRecords exchanged between exactly
// one traffic thread (producer) and the reporter (consumer). It tracks
// producer/consumer cursors, a fixed capacity, a consumer-done flag, an
// await-counter diagnostic, and the two wait/wake conditions the
// producer and consumer use to signal each other.
package ring

import (
    "sync"
    "sync/atomic"

    "github.com/camelinx/netperfd/internal/clock"
)

// Capacity is the fixed ring size, N = 5000.
const Capacity = 5000

// WriteErrKind enumerates PacketRecord.WriteErr.
type WriteErrKind int

const (
    WriteErrNone WriteErrKind = iota
    WriteErrAccounted
    WriteErrFatal
    WriteErrNotAccounted
)

// L2 frame validation bitmask values, matching stats.L2Unknown and kin.
const (
    L2Unknown     = 0x01
    L2LengthErr   = 0x02
    L2ChecksumErr = 0x04
)

// PacketRecord is the unit carried on the ring: one packet's send/receive
// timestamps, size, sequence id, and any error/terminal markers.
type PacketRecord struct {
    PacketID        int64
    PacketLen       int64
    PacketTime      clock.Timestamp
    SentTime        clock.Timestamp
    WriteErr        WriteErrKind
    Empty           bool
    Final           bool
    Socket          int
    L2Errors        int
    L2Len           int
    ExpectedL2Len   int

    // Isochronous burst fields, meaningful only when the flow is
    // running in isochronous mode.
    IsochStartTime  clock.Timestamp
    PrevFrameID     int64
    FrameID         int64
    BurstSize       int64
    BurstPeriod     int64
    Remaining       int64
}

// Ring is a fixed-capacity SPSC bounded queue of PacketRecords.
//
// producer and consumer are read/written by exactly one goroutine each
// (the traffic thread and the reporter, respectively) and are accessed
// exclusively through the sync/atomic package so that neither side ever
// observes a torn value - a stale read only causes a spurious "empty" or
// "full" observation that resolves on the next check.
type Ring struct {
    slots       [ Capacity ]PacketRecord

    producer    int32
    consumer    int32

    consumerDone    int32
    awaitCounter    int64

    mu              sync.Mutex
    awaitConsumer   *sync.Cond
    awakeConsumer   *sync.Cond
}

// New builds an empty ring. awake is the reporter's shared wake
// condition, signaled after every enqueue that crosses a was-empty edge
// so the reporter is woken up promptly.
func New( awake *sync.Cond )( *Ring ) {
    r := &Ring{ awakeConsumer: awake }
    r.awaitConsumer = sync.NewCond( &r.mu )
    return r
}

func next( i int32 )( int32 ) {
    return ( i + 1 ) % Capacity
}

// full reports whether the ring cannot accept another record without
// overwriting one the consumer has not yet drained.
func ( r *Ring )full( producer, consumer int32 )( bool ) {
    return next( producer ) == consumer
}

// Enqueue blocks the producer while the ring is full - the producer waits
// on awaitConsumer until the consumer advances - and never drops or
// overwrites a record. Exactly one goroutine may call Enqueue.
func ( r *Ring )Enqueue( rec PacketRecord ) {
    producer := atomic.LoadInt32( &r.producer )
    consumer := atomic.LoadInt32( &r.consumer )

    if r.full( producer, consumer ) {
        r.mu.Lock( )
        for r.full( atomic.LoadInt32( &r.producer ), atomic.LoadInt32( &r.consumer ) ) {
            atomic.AddInt64( &r.awaitCounter, 1 )
            r.awaitConsumer.Wait( )
        }
        r.mu.Unlock( )
        producer = atomic.LoadInt32( &r.producer )
        consumer = atomic.LoadInt32( &r.consumer )
    }

    wasEmpty := producer == consumer

    r.slots[ producer ] = rec
    atomic.StoreInt32( &r.producer, next( producer ) )

    if wasEmpty && r.awakeConsumer != nil {
        r.awakeConsumer.L.Lock( )
        r.awakeConsumer.Signal( )
        r.awakeConsumer.L.Unlock( )
    }
}

// Dequeue returns the next record and true if the ring is non-empty, or
// the zero value and false otherwise. It never blocks. Exactly one
// goroutine may call Dequeue.
func ( r *Ring )Dequeue( )( PacketRecord, bool ) {
    producer := atomic.LoadInt32( &r.producer )
    consumer := atomic.LoadInt32( &r.consumer )

    if producer == consumer {
        return PacketRecord{ }, false
    }

    rec := r.slots[ consumer ]
    atomic.StoreInt32( &r.consumer, next( consumer ) )

    r.mu.Lock( )
    r.awaitConsumer.Signal( )
    r.mu.Unlock( )

    return rec, true
}

// Empty reports whether the ring currently has no records to drain. The
// observation may be stale by the time the caller acts on it, which is
// harmless: the consumer only uses it to decide whether to keep polling.
func ( r *Ring )Empty( )( bool ) {
    return atomic.LoadInt32( &r.producer ) == atomic.LoadInt32( &r.consumer )
}

// MarkConsumerDone is called by the consumer once it has observed the
// producer is finished (CloseReport was called) and the ring has been
// fully drained. It never blocks and is idempotent.
func ( r *Ring )MarkConsumerDone( ) {
    atomic.StoreInt32( &r.consumerDone, 1 )

    r.mu.Lock( )
    r.awaitConsumer.Broadcast( )
    r.mu.Unlock( )
}

// ConsumerDone reports whether MarkConsumerDone has been called.
func ( r *Ring )ConsumerDone( )( bool ) {
    return atomic.LoadInt32( &r.consumerDone ) == 1
}

// AwaitCounter returns the number of times the producer had to wait for
// ring space, exposed purely for diagnostics.
func ( r *Ring )AwaitCounter( )( int64 ) {
    return atomic.LoadInt64( &r.awaitCounter )
}

// WaitConsumerDone blocks the caller until MarkConsumerDone has been
// observed. Used by EndReport to guarantee the reporter has printed the
// final summary before the traffic thread returns.
func ( r *Ring )WaitConsumerDone( ) {
    r.mu.Lock( )
    for atomic.LoadInt32( &r.consumerDone ) == 0 {
        r.awaitConsumer.Wait( )
    }
    r.mu.Unlock( )
}
