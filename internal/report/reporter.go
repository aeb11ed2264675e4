package report

import (
    "context"
    "sync"
)

// latencyPlausibleMin/Max bound the "clocks are synchronized enough to
// trust" window.
const (
    latencyPlausibleMin = -1.0
    latencyPlausibleMax = 60.0
)

// drainBatch caps how many ring records one pollOnce pass drains from a
// single head, so one very busy flow cannot starve the others being
// polled round-robin in the same pass.
const drainBatch = 256

// Reporter is the single consumer thread: it polls every live
// ReportHeader round-robin, drains its ring, maintains interval and
// cumulative statistics, emits reports, and frees heads once the
// producer has finished and the ring is empty.
type Reporter struct {
    mu          sync.Mutex
    headList    *ReportHeader
    wake        *sync.Cond

    emittersMu  sync.Mutex
    emitters    [ ]StatisticsEmitter

    intervalLength  float64
    enhanced        bool
}

// NewReporter builds a Reporter for one reporter scope. intervalLength is
// the -i seconds value (0 disables periodic reports). An interval under
// 0.5s auto-enables enhanced reporting regardless of the caller's
// preference.
func NewReporter( intervalLength float64, enhanced bool )( *Reporter ) {
    r := &Reporter{ intervalLength: intervalLength, enhanced: enhanced }
    r.wake = sync.NewCond( &r.mu )

    if intervalLength > 0 && intervalLength < 0.5 {
        r.enhanced = true
    }

    return r
}

// WakeCond exposes the reporter's global wake condition so rings created
// for heads posted to this reporter can signal it directly when an
// enqueue lands in an empty ring.
func ( r *Reporter )WakeCond( )( *sync.Cond ) {
    return r.wake
}

// AddEmitter registers a StatisticsEmitter; reports are fanned out to
// every registered emitter in registration order.
func ( r *Reporter )AddEmitter( e StatisticsEmitter ) {
    r.emittersMu.Lock( )
    defer r.emittersMu.Unlock( )
    r.emitters = append( r.emitters, e )
}

func ( r *Reporter )emitInterval( info *TransferInfo ) {
    r.emittersMu.Lock( )
    defer r.emittersMu.Unlock( )
    for _, e := range r.emitters {
        e.EmitInterval( info )
    }
}

func ( r *Reporter )emitSum( info *TransferInfo ) {
    r.emittersMu.Lock( )
    defer r.emittersMu.Unlock( )
    for _, e := range r.emitters {
        e.EmitSum( info )
    }
}

func ( r *Reporter )emitConnection( conn *ConnectionInfo ) {
    r.emittersMu.Lock( )
    defer r.emittersMu.Unlock( )
    for _, e := range r.emitters {
        e.EmitConnection( conn )
    }
}

func ( r *Reporter )emitSettings( data *ReporterData ) {
    r.emittersMu.Lock( )
    defer r.emittersMu.Unlock( )
    for _, e := range r.emitters {
        e.EmitSettings( data )
    }
}

// PostReport links head into the reporter's list under the list lock and
// wakes the reporter.
func ( r *Reporter )PostReport( head *ReportHeader ) {
    r.mu.Lock( )
    head.next = r.headList
    r.headList = head
    r.mu.Unlock( )

    r.wake.L.Lock( )
    r.wake.Broadcast( )
    r.wake.L.Unlock( )
}

// EmitConnectionOnly and EmitSettingsOnly are the connection-only and
// settings-only report paths - flows that produce no data records bypass
// the ring entirely.
func ( r *Reporter )EmitConnectionOnly( conn *ConnectionInfo ) {
    r.emitConnection( conn )
}

func ( r *Reporter )EmitSettingsOnly( data *ReporterData ) {
    r.emitSettings( data )
}

// unlink removes head from the list; callers must hold r.mu.
func ( r *Reporter )unlinkLocked( target *ReportHeader ) {
    if r.headList == target {
        r.headList = target.next
        return
    }

    for h := r.headList; h != nil; h = h.next {
        if h.next == target {
            h.next = target.next
            return
        }
    }
}

// Run drives the poll-drain-emit loop until ctx is done and every head
// has been drained and freed. No thread may terminate with unflushed
// records, so cancellation only stops new waiting - it does not skip
// draining heads that already have posted records.
func ( r *Reporter )Run( ctx context.Context ) {
    stopWaiting := make( chan struct{ } )
    defer close( stopWaiting )

    go func( ) {
        select {
            case <-ctx.Done( ):
                r.wake.L.Lock( )
                r.wake.Broadcast( )
                r.wake.L.Unlock( )
            case <-stopWaiting:
        }
    }( )

    for {
        progressed := r.pollOnce( )

        r.mu.Lock( )
        empty := r.headList == nil
        r.mu.Unlock( )

        if empty && ctx.Err( ) != nil {
            return
        }

        if progressed {
            continue
        }

        r.wake.L.Lock( )
        r.wake.Wait( )
        r.wake.L.Unlock( )
    }
}

// finalizeHead emits h's closing transfer row, folds it into h's group's
// final SUM row if h belongs to one, marks h's ring's consumer done so a
// blocked EndReport can return, and unlinks h from the reporter's list -
// the Drained -> Freed transition.
func ( r *Reporter )finalizeHead( h *ReportHeader ) {
    info := r.snapshotInterval( h, h.Report.PacketTime )
    r.emitInterval( &info )

    if h.Multi != nil {
        if ready, sum := h.Multi.accumulateFinal( &info ); ready {
            r.emitSum( &sum )
        }
    }

    h.Ring.MarkConsumerDone( )

    r.mu.Lock( )
    r.unlinkLocked( h )
    r.mu.Unlock( )

    h.state = stateFreed
}

// pollOnce drains up to drainBatch records from every live head in list
// order and reports whether any record was processed.
func ( r *Reporter )pollOnce( )( progressed bool ) {
    r.mu.Lock( )
    heads := make( [ ]*ReportHeader, 0, 8 )
    for h := r.headList; h != nil; h = h.next {
        heads = append( heads, h )
    }
    r.mu.Unlock( )

    for _, h := range heads {
        if r.drainHead( h ) {
            progressed = true
        }
    }

    return progressed
}

// drainHead drains up to drainBatch records from h's ring, advances its
// interval boundaries, and frees h once it has been fully closed out.
func ( r *Reporter )drainHead( h *ReportHeader )( progressed bool ) {
    for i := 0; i < drainBatch; i++ {
        rec, ok := h.Ring.Dequeue( )
        if !ok {
            break
        }
        progressed = true

        if h.state == stateAttached {
            h.state = stateRunning
        }

        r.processRecord( h, &rec )

        if rec.Final {
            h.state = stateClosing
        }
    }

    if h.state == stateClosing && h.Ring.Empty( ) {
        h.state = stateDrained
        r.finalizeHead( h )
        progressed = true
    }

    return progressed
}

