// Package stats holds the plain accumulators that the reporter maintains
// per flow: one-way transit (Welford mean/variance), read/write call
// counters, L2 frame-error counters and isochronous burst counters. Each
// is kept twice - a current-interval window and a cumulative total -
// except IsochStats, whose slip/frame counters are window-only.
package stats

const BinCount = 8

// TransitStats tracks the running min/max/mean/variance of one-way packet
// transit time using Welford's online algorithm, for the current interval
// and cumulatively.
type TransitStats struct {
    Max         float64
    Min         float64
    Sum         float64
    Last        float64
    Mean        float64
    M2          float64
    Cnt         int

    TotMax      float64
    TotMin      float64
    TotSum      float64
    TotCnt      int
    TotMean     float64
    TotM2       float64
}

// ReadStats tracks the number of successful read calls and a histogram of
// read sizes, per interval and cumulatively.
type ReadStats struct {
    CntRead     int
    TotCntRead  int
    Bins        [ BinCount ]int
    TotBins     [ BinCount ]int
    BinSize     int
}

// WriteStats tracks write call counts/errors, TCP retransmits, and the
// most recently observed congestion window and smoothed RTT.
type WriteStats struct {
    WriteCnt        int
    WriteErr        int
    TCPRetry        int

    TotWriteCnt     int
    TotWriteErr     int
    TotTCPRetry     int
    LastTCPRetry    int

    Cwnd            int
    RTT             int
    MeanRTT         float64
    UpToDate        bool
}

// L2Stats tracks layer-2 frame validation counters.
type L2Stats struct {
    Cnt             int64
    Unknown         int64
    UDPChecksumErr  int64
    LengthErr       int64

    TotCnt              int64
    TotUnknown          int64
    TotUDPChecksumErr   int64
    TotLengthErr        int64
}

// IsochStats tracks the isochronous (variable bit rate burst) source.
type IsochStats struct {
    FPS             int
    Mean            float64
    Variance        float64
    JitterBufSize   int
    SlipCnt         int64
    FrameCnt        int64
    FrameLostCnt    int64
    BurstInterval   uint32
    BurstIPG        uint32
    FrameID         int64
}

// Direction discriminates the SendOrReadStats tagged union.
type Direction int

const (
    DirectionUnknown Direction = iota
    DirectionRead
    DirectionWrite
)

// SendOrReadStats is a tagged union of ReadStats/WriteStats, discriminated
// by traffic direction, since a flow is only ever a sender or a receiver.
type SendOrReadStats struct {
    Dir     Direction
    Read    ReadStats
    Write   WriteStats
}
