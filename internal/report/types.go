// Package report holds the data model and consumer thread: ConnectionInfo,
// ReporterData, TransferInfo and ReportHeader, the MultiHeader
// group/barrier object, and the single-consumer Reporter that drains
// every live head's ring.
//
// MultiHeader lives in this same package rather than a separate
// internal/group package: ReportHeader references its group non-owningly
// and the reporter mutates the group's aggregated counters, so splitting
// the two into mutually-importing packages would create an import cycle
// for no benefit.
package report

import (
    "sync"

    "github.com/camelinx/netperfd/internal/clock"
    "github.com/camelinx/netperfd/internal/histogram"
    "github.com/camelinx/netperfd/internal/ring"
    "github.com/camelinx/netperfd/internal/stats"
)

// PacketHandler tags a head with the traffic pattern to apply when
// processing a packet record, instead of a per-packet function pointer.
type PacketHandler int

const (
    HandlerUnknown PacketHandler = iota
    TCPSender
    TCPReceiver
    UDPSender
    UDPReceiver
)

// ThreadMode distinguishes a client-role flow from a server-role flow.
type ThreadMode int

const (
    ThreadModeClient ThreadMode = iota
    ThreadModeServer
)

// Report type bitmask, distinguishing transfer, server-relay, settings
// and connection report rows.
const (
    ReportTransfer    = 0x01
    ReportServerRelay = 0x02
    ReportSettings    = 0x04
    ReportConnection  = 0x08
    ReportMultiple    = 0x10
)

// ConnectionInfo describes one flow's endpoints and negotiated
// characteristics, matching Connection_Info.
type ConnectionInfo struct {
    PeerAddr        string
    LocalAddr       string
    PeerVersion     string

    ConnectTime         float64
    TxHoldbackTime      float64
    EpochStart          clock.Timestamp

    WindowSize          int
    WindowSizeRequested int

    Flags       int
    FlagsExtend int
    Format      byte
}

// TransferInfo is the public snapshot of a flow at an interval boundary,
// matching Transfer_Info.
type TransferInfo struct {
    TransferID  int
    GroupID     int

    IntervalStart   float64
    IntervalEnd     float64

    CntError        int64
    CntOutOfOrder   int64
    CntDatagrams    int64
    IPGCnt          int64

    Transit         stats.TransitStats
    SockCallStats   stats.SendOrReadStats

    TotalLen    uint64
    Jitter      float64
    IPGSum      float64
    TripTime    float64

    Format      byte
    Enhanced    bool
    TTL         byte
    UDP         bool
    TCP         bool

    LatencyHistogram        *histogram.Histogram
    LatencySuppressed       bool

    L2Counts    stats.L2Stats

    Isochronous     bool
    IsochStats      stats.IsochStats
    Frame           stats.TransitStats
    FrameLatencyHistogram *histogram.Histogram
}

// Settings is the immutable-after-construction snapshot of a flow's
// negotiated configuration, referenced from ReporterData.
type Settings struct {
    BufLen          int
    MSS             int
    TCPWindow       int
    UDPRate         int64
    UDPRatePPS      bool
    Port            uint16
    Host            string
    LocalHost       string
    IfrName         string
    IfrNameTx       string
    SSMMulticast    string
    TxSyncInterval  float64
    FQPacingRate    uint32
}

// ReporterData is one per flow: connection info, active TransferInfo, the
// running timers, cumulative counters and the settings snapshot, matching
// ReporterData.
type ReporterData struct {
    Connection  ConnectionInfo
    Info        TransferInfo
    Settings    Settings

    Type    int
    Mode    ThreadMode

    CntError        int64
    LastError       int64
    CntOutOfOrder   int64
    LastOutOfOrder  int64
    CntDatagrams    int64
    LastDatagrams   int64
    PacketID        int64

    TotalLen    uint64
    LastTotal   uint64

    Start           clock.Timestamp
    NextInterval    clock.Timestamp
    PacketTime      clock.Timestamp
    IntervalTime    clock.Timestamp
    IPGStart        clock.Timestamp
    ClientStart     clock.Timestamp
}

// headState is the per-head lifecycle state machine:
// Attached -> Running -> Closing -> Drained -> Freed.
type headState int

const (
    stateAttached headState = iota
    stateRunning
    stateClosing
    stateDrained
    stateFreed
)

// ReportHeader owns one flow's ReporterData and packet ring, references
// its (possibly nil) group, and is linked into the reporter's list.
type ReportHeader struct {
    Report      ReporterData
    Handler     PacketHandler
    Multi       *MultiHeader
    Ring        *ring.Ring

    state       headState
    next        *ReportHeader

    lastPacketID int64
    haveLastID   bool

    lastFrameID     int64
    haveLastFrameID bool
}

// MultiHeader is the group/barrier object shared by all flows of a
// single parallel client run.
type MultiHeader struct {
    GroupID     int
    Threads     int

    Report  ReporterData
    Data    TransferInfo

    StartTime       clock.Timestamp
    NextInterval    clock.Timestamp

    mu          sync.Mutex
    arrived     int
    barrier     *sync.Cond

    // sumArrived counts interval-row contributions toward the next SUM
    // row. It is a separate counter from arrived (the start-barrier
    // count) because BarrierClient never resets arrived once every flow
    // has crossed the barrier - reusing it here would let the reporter's
    // very first accumulateInterval call race arrived past Threads and
    // emit a SUM row after a single flow's row instead of every flow's.
    sumArrived  int
    doneCount   int
}

var (
    groupIDMu   sync.Mutex
    nextGroupID int
)

// allocGroupID hands out a strictly decreasing negative id under a
// process-wide lock. Negative group ids keep a reverse-direction flow's
// server-side row distinguishable when it shares its peer's group but
// reports under a negated transfer id.
func allocGroupID( )( int ) {
    groupIDMu.Lock( )
    defer groupIDMu.Unlock( )

    nextGroupID--
    return nextGroupID
}

// NewMultiHeader allocates a group id and builds the shared barrier for
// threads parallel flows.
func NewMultiHeader( threads int )( *MultiHeader ) {
    m := &MultiHeader {
        GroupID : allocGroupID( ),
        Threads : threads,
    }
    m.barrier = sync.NewCond( &m.mu )
    return m
}

// BarrierClient is called by each parallel client flow before its first
// byte. The last arriver records the common epoch start time and
// releases every waiter; at Threads == 1 it is a no-op.
func ( m *MultiHeader )BarrierClient( epoch clock.Timestamp ) {
    if m == nil || m.Threads <= 1 {
        return
    }

    m.mu.Lock( )
    defer m.mu.Unlock( )

    m.arrived++
    if m.arrived < m.Threads {
        for m.arrived < m.Threads {
            m.barrier.Wait( )
        }
        return
    }

    m.StartTime = epoch
    m.NextInterval = epoch
    m.barrier.Broadcast( )
}
