package report

import (
    "time"

    "github.com/camelinx/netperfd/internal/clock"
    "github.com/camelinx/netperfd/internal/ring"
    "github.com/camelinx/netperfd/internal/stats"
)

func secondsToTimestamp( s float64 )( clock.Timestamp ) {
    return clock.FromDuration( time.Duration( s * float64( time.Second ) ) )
}

// processRecord folds one PacketRecord into h's running statistics and
// advances h's interval boundary, emitting zero-filled catch-up intervals
// for any boundary skipped within one burst.
func ( r *Reporter )processRecord( h *ReportHeader, rec *ring.PacketRecord ) {
    data := &h.Report

    if data.Start.Zero( ) && !rec.PacketTime.Zero( ) {
        data.Start = rec.PacketTime
        data.NextInterval = data.Start
        if r.intervalLength > 0 {
            data.NextInterval = clock.Add( data.Start, secondsToTimestamp( r.intervalLength ) )
        }
    }

    data.PacketTime = rec.PacketTime

    if rec.WriteErr == ring.WriteErrFatal {
        rec.Final = true
    }

    if !rec.Empty {
        r.accountDatagram( h, rec )
    }

    if r.intervalLength > 0 {
        for clock.Sub( rec.PacketTime, data.NextInterval ) >= 0 {
            r.emitWindowInterval( h )
            data.NextInterval = clock.Add( data.NextInterval, secondsToTimestamp( r.intervalLength ) )
        }
    }

}

// accountDatagram folds one non-empty packet into the running counters:
// byte/datagram totals, transit time (Welford), RFC-1889 jitter, UDP
// out-of-order/loss detection against lastPacketID+1, isochronous frame
// accounting, L2 frame checks, and write statistics.
func ( r *Reporter )accountDatagram( h *ReportHeader, rec *ring.PacketRecord ) {
    data := &h.Report

    data.TotalLen += uint64( rec.PacketLen )
    data.CntDatagrams++

    if !rec.SentTime.Zero( ) && !rec.PacketTime.Zero( ) {
        transit := clock.Sub( rec.PacketTime, rec.SentTime )
        prevTransit := data.Info.Transit.Last
        hadPrev := data.Info.Transit.Cnt > 0

        data.Info.Transit.UpdateTransit( transit )

        if hadPrev && data.Info.UDP {
            d := transit - prevTransit
            if d < 0 {
                d = -d
            }
            data.Info.Jitter += ( d - data.Info.Jitter ) / 16.0
        }

        if data.Info.LatencyHistogram != nil {
            data.Info.LatencyHistogram.Insert( transit, rec.PacketTime )
        }
    }

    if data.Info.UDP {
        r.accountSequence( h, rec )
    }

    if rec.BurstSize != 0 {
        r.accountFrame( h, rec )
    }

    if rec.L2Errors != 0 {
        data.Info.L2Counts.RecordL2( rec.L2Errors )
    }

    switch h.Handler {
        case TCPSender, UDPSender:
            data.Info.SockCallStats.Dir = stats.DirectionWrite
            data.Info.SockCallStats.Write.RecordWrite( rec.WriteErr != ring.WriteErrAccounted )
        case TCPReceiver, UDPReceiver:
            data.Info.SockCallStats.Dir = stats.DirectionRead
            data.Info.SockCallStats.Read.RecordRead( int( rec.PacketLen ) )
    }
}

// accountSequence detects out-of-order and lost UDP datagrams: the
// received packet id is compared against lastPacketID+1 - strictly
// lesser is out-of-order, strictly greater adds the gap as loss, equal is
// the expected case.
func ( r *Reporter )accountSequence( h *ReportHeader, rec *ring.PacketRecord ) {
    if !h.haveLastID {
        h.lastPacketID = rec.PacketID
        h.haveLastID = true
        return
    }

    expected := h.lastPacketID + 1
    switch {
        case rec.PacketID < expected:
            h.Report.CntOutOfOrder++
        case rec.PacketID > expected:
            h.Report.CntError += rec.PacketID - expected
    }

    if rec.PacketID >= h.lastPacketID {
        h.lastPacketID = rec.PacketID
    }
}

// accountFrame folds in one isochronous burst packet, treating a change
// in rec.FrameID from the last one seen as a frame boundary: the gap
// between the two ids is the count of whole frames that never delivered
// a single packet, and the new frame's first arrival is inserted into
// FrameLatencyHistogram measured from its IsochStartTime. Packets within
// the same burst share a FrameID and only the boundary crossing updates
// the counters, so a multi-packet frame is not counted once per packet.
func ( r *Reporter )accountFrame( h *ReportHeader, rec *ring.PacketRecord ) {
    if h.haveLastFrameID && rec.FrameID == h.lastFrameID {
        return
    }

    data := &h.Report

    var lost int64
    if h.haveLastFrameID {
        lost = rec.FrameID - h.lastFrameID - 1
        if lost < 0 {
            lost = 0
        }
    }

    data.Info.IsochStats.RecordFrame( lost )
    data.Info.IsochStats.FrameID = rec.FrameID
    h.lastFrameID = rec.FrameID
    h.haveLastFrameID = true

    if !rec.IsochStartTime.Zero( ) {
        latency := clock.Sub( rec.PacketTime, rec.IsochStartTime )
        data.Info.Frame.UpdateTransit( latency )

        if data.Info.FrameLatencyHistogram != nil {
            data.Info.FrameLatencyHistogram.Insert( latency, rec.PacketTime )
        }
    }
}

// plausibleLatency reports whether the observed minimum transit falls
// within [-1s, 60s] - outside that window the peers' clocks are assumed
// unsynchronized and latency figures are suppressed rather than reported.
func plausibleLatency( transit *ReporterData )( bool ) {
    if transit.Info.Transit.Cnt == 0 {
        return true
    }
    return transit.Info.Transit.Min >= latencyPlausibleMin && transit.Info.Transit.Min <= latencyPlausibleMax
}

// snapshotInterval builds the TransferInfo row ending at boundary and
// resets the window view, rolling cumulative fields forward. Periodic
// rows pass data.NextInterval as boundary; the closing row passes
// data.PacketTime, since NextInterval has not been reached yet when the
// last record arrives mid-window.
func ( r *Reporter )snapshotInterval( h *ReportHeader, boundary clock.Timestamp )( TransferInfo ) {
    data := &h.Report

    info := data.Info
    info.IntervalEnd = 0
    if !boundary.Zero( ) {
        info.IntervalEnd = clock.Sub( boundary, data.Start )
    }
    info.IntervalStart = info.IntervalEnd - r.intervalLength
    if info.IntervalStart < 0 {
        info.IntervalStart = 0
    }
    info.TransferID = h.transferID( )
    info.GroupID = 0
    if h.Multi != nil {
        info.GroupID = h.Multi.GroupID
    }

    info.CntError = data.CntError - data.LastError
    info.CntOutOfOrder = data.CntOutOfOrder - data.LastOutOfOrder
    info.CntDatagrams = data.CntDatagrams - data.LastDatagrams
    info.TotalLen = data.TotalLen - data.LastTotal

    info.LatencySuppressed = !plausibleLatency( data )

    data.LastError = data.CntError
    data.LastOutOfOrder = data.CntOutOfOrder
    data.LastDatagrams = data.CntDatagrams
    data.LastTotal = data.TotalLen

    data.Info.Transit.ResetWindow( )
    data.Info.SockCallStats.Read.ResetWindow( )
    data.Info.SockCallStats.Write.ResetWindow( )
    data.Info.L2Counts.ResetWindow( )
    data.Info.IsochStats.ResetWindow( )
    data.Info.Frame.ResetWindow( )

    return info
}

// transferID returns the thread id for this flow, negated for a
// server-mode flow that belongs to a group.
func ( h *ReportHeader )transferID( )( int ) {
    id := h.Report.Info.TransferID
    if h.Report.Mode == ThreadModeServer && h.Multi != nil {
        return -id
    }
    return id
}

// emitWindowInterval snapshots and emits this flow's interval row, and -
// if the flow belongs to a parallel group - accumulates it into the
// group's SUM aggregator.
func ( r *Reporter )emitWindowInterval( h *ReportHeader ) {
    info := r.snapshotInterval( h, h.Report.NextInterval )
    r.emitInterval( &info )

    if h.Multi != nil {
        if ready, sum := h.Multi.accumulateInterval( &info ); ready {
            r.emitSum( &sum )
        }
    }
}

