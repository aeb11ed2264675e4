package report

import (
    "testing"
    "time"

    "github.com/camelinx/netperfd/internal/clock"
    "github.com/camelinx/netperfd/internal/histogram"
    "github.com/camelinx/netperfd/internal/ring"
)

func TestAccountFrameCountsSlipAndLatency( t *testing.T ) {
    r := NewReporter( 0, false )

    h := &ReportHeader{ }
    h.Report.Info.FrameLatencyHistogram = histogram.New( 0.001, 10, 0, 0.01, "s" )

    base := clock.Now( )

    frame0 := ring.PacketRecord{
        FrameID        : 0,
        IsochStartTime : base,
        PacketTime     : clock.Add( base, clock.FromDuration( 2 * time.Millisecond ) ),
    }
    r.accountFrame( h, &frame0 )

    frame2 := ring.PacketRecord{
        FrameID        : 2,
        IsochStartTime : clock.Add( base, clock.FromDuration( 20 * time.Millisecond ) ),
        PacketTime     : clock.Add( base, clock.FromDuration( 22 * time.Millisecond ) ),
    }
    r.accountFrame( h, &frame2 )

    if h.Report.Info.IsochStats.FrameCnt != 2 {
        t.Fatalf( "FrameCnt - expected 2, saw %v", h.Report.Info.IsochStats.FrameCnt )
    }
    if h.Report.Info.IsochStats.FrameLostCnt != 1 {
        t.Fatalf( "FrameLostCnt - expected 1 (frame 1 never arrived), saw %v", h.Report.Info.IsochStats.FrameLostCnt )
    }
    if h.Report.Info.IsochStats.SlipCnt != 1 {
        t.Fatalf( "SlipCnt - expected 1, saw %v", h.Report.Info.IsochStats.SlipCnt )
    }
    if h.Report.Info.FrameLatencyHistogram.Count( ) != 2 {
        t.Fatalf( "expected two frame latency samples, saw %v", h.Report.Info.FrameLatencyHistogram.Count( ) )
    }

    dup := frame2
    r.accountFrame( h, &dup )
    if h.Report.Info.IsochStats.FrameCnt != 2 {
        t.Fatalf( "expected FrameCnt unchanged for a repeated FrameID in the same burst, saw %v", h.Report.Info.IsochStats.FrameCnt )
    }
    if h.Report.Info.FrameLatencyHistogram.Count( ) != 2 {
        t.Fatalf( "expected no extra latency sample for a repeated FrameID, saw %v", h.Report.Info.FrameLatencyHistogram.Count( ) )
    }
}
