// Package flow is the thin contract traffic threads use to talk to the
// reporter: InitReport, PostReport, ReportPacket, CloseReport, EndReport,
// FreeReport, plus the connection-only and settings-only bypass emits. It
// owns none of the reporter's internals - it is a thin adapter from a
// traffic goroutine's point of view onto *report.Reporter and *ring.Ring.
package flow

import (
    "github.com/camelinx/netperfd/internal/clock"
    "github.com/camelinx/netperfd/internal/histogram"
    "github.com/camelinx/netperfd/internal/report"
    "github.com/camelinx/netperfd/internal/ring"
    "github.com/camelinx/netperfd/internal/stats"
)

// InitSettings is what a traffic thread supplies when starting a flow:
// everything ReporterData needs plus the packet-handler tag resolved
// from (transport, direction).
type InitSettings struct {
    Handler    report.PacketHandler
    Mode       report.ThreadMode
    TransferID int
    GroupID    int
    Multi      *report.MultiHeader

    Connection report.ConnectionInfo
    Settings   report.Settings

    UDP  bool
    TCP  bool

    LatencyHistogram *histogram.Histogram

    Isochronous           bool
    IsochStats            stats.IsochStats
    FrameLatencyHistogram *histogram.Histogram
}

// InitReport allocates a ReportHeader and its ring, deriving ReporterData
// from settings. The ring is wired to r's shared wake condition so an
// empty-to-non-empty transition promptly wakes the reporter.
func InitReport( r *report.Reporter, settings InitSettings )( *report.ReportHeader ) {
    head := &report.ReportHeader{
        Handler : settings.Handler,
        Multi   : settings.Multi,
        Ring    : ring.New( r.WakeCond( ) ),
    }

    head.Report.Connection = settings.Connection
    head.Report.Settings = settings.Settings
    head.Report.Mode = settings.Mode
    head.Report.Info.TransferID = settings.TransferID
    head.Report.Info.GroupID = settings.GroupID
    head.Report.Info.UDP = settings.UDP
    head.Report.Info.TCP = settings.TCP
    head.Report.Info.LatencyHistogram = settings.LatencyHistogram

    head.Report.Info.Isochronous = settings.Isochronous
    head.Report.Info.IsochStats = settings.IsochStats
    head.Report.Info.FrameLatencyHistogram = settings.FrameLatencyHistogram

    return head
}

// PostReport links head into r's list and wakes it.
func PostReport( r *report.Reporter, head *report.ReportHeader ) {
    r.PostReport( head )
}

// ReportPacket enqueues rec onto head's ring. It blocks the calling
// traffic thread if the ring is momentarily full - the expected
// back-pressure signal, not an error.
func ReportPacket( head *report.ReportHeader, rec ring.PacketRecord ) {
    head.Ring.Enqueue( rec )
}

// CloseReport pushes a final record carrying terminal markers. The
// caller must not call ReportPacket again afterwards.
func CloseReport( head *report.ReportHeader, final ring.PacketRecord ) {
    final.Final = true
    head.Ring.Enqueue( final )
}

// EndReport blocks until the reporter has observed the close record and
// drained the ring (consumerDone) - guaranteeing the final summary has
// already been printed before this call returns.
func EndReport( head *report.ReportHeader ) {
    head.Ring.WaitConsumerDone( )
}

// FreeReport is a no-op placeholder: once EndReport has returned, the
// reporter has already unlinked and released head
// (internal/report.Reporter.finalizeHead); Go's GC reclaims the rest. It
// exists so traffic-thread call sites keep a consistent six-call
// lifecycle regardless of transport.
func FreeReport( head *report.ReportHeader ) {
    _ = head
}

// EmitConnectionOnly and EmitSettingsOnly are ring-bypass reports for
// flows that never produce a data record (e.g. a rejected connection, or
// a pure settings probe).
func EmitConnectionOnly( r *report.Reporter, conn *report.ConnectionInfo ) {
    r.EmitConnectionOnly( conn )
}

func EmitSettingsOnly( r *report.Reporter, data *report.ReporterData ) {
    r.EmitSettingsOnly( data )
}

// NewPacketRecord is a small convenience constructor traffic threads use
// to stamp send/receive timestamps consistently.
func NewPacketRecord( id, length int64, sent, received clock.Timestamp )( ring.PacketRecord ) {
    return ring.PacketRecord{
        PacketID   : id,
        PacketLen  : length,
        SentTime   : sent,
        PacketTime : received,
    }
}

// NewIsochPacketRecord stamps the isochronous burst fields onto a packet
// record: frameID/prevFrameID identify the frame this packet belongs to,
// frameStart is when the burst began being written, burstSize is the
// frame's total byte length, and remaining is the bytes of the frame
// still to be written after this packet.
func NewIsochPacketRecord( id, length int64, sent, received clock.Timestamp, frameStart clock.Timestamp, prevFrameID, frameID, burstSize, remaining int64 )( ring.PacketRecord ) {
    rec := NewPacketRecord( id, length, sent, received )
    rec.IsochStartTime = frameStart
    rec.PrevFrameID = prevFrameID
    rec.FrameID = frameID
    rec.BurstSize = burstSize
    rec.Remaining = remaining
    return rec
}

// EmptyTick builds the idle "tick" record: a flow posts one of these when
// it has been idle for at least the reporting interval, so the reporter
// can still emit a zero-transfer row on time.
func EmptyTick( now clock.Timestamp )( ring.PacketRecord ) {
    return ring.PacketRecord{ PacketTime: now, Empty: true }
}
