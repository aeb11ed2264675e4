// Package engine owns role dispatch (client vs server), parallel-thread
// fan-out, negotiated-mode selection, and process lifecycle (interrupt
// flag, exit code). Settings is the one exported, CLI/env-populated
// struct passed into Run, an exported-field-plus-embedded-private-context
// layout.
package engine

import (
    "time"
)

// Role selects client or server behavior.
type Role int

const (
    RoleServer Role = iota
    RoleClient
)

// Transport selects TCP or UDP.
type Transport int

const (
    TransportTCP Transport = iota
    TransportUDP
)

// engineCtx holds runtime-only state not set by the CLI/env layer.
// interrupted is a plain bool polled cooperatively between I/Os - a write
// from the signal handler racing a read from a traffic thread only
// delays the thread noticing by one poll, never corrupts state.
type engineCtx struct {
    interrupted bool
}

// Settings is the fully resolved configuration for one engine.Run
// invocation, populated by cmd/netperf's flag+env+YAML resolution.
type Settings struct {
    Role      Role
    Transport Transport

    Host       string
    BindHost   string
    Port       int

    Threads int

    BufLen     int
    TCPWindow  int
    MSS        int

    Duration  time.Duration
    Infinite  bool
    ByteLimit int64

    IntervalLength time.Duration
    Enhanced       bool

    OfferedRate    int64
    OfferedRatePPS bool

    Dual    bool
    TradeOff bool
    Reverse bool
    Bidir   bool

    TOS          int
    TTL          int
    CongAlgo     string
    BindDevice   string
    FQPacingRate uint32

    CSVOutput  bool
    OutputFile string
    MetricsAddr string

    RxHistogramSpec string

    IsochFPS      int
    IsochMeanSize int
    IsochVariance float64

    TxStartTime float64

    engineCtx
}

// NewSettings returns a Settings with the tool's documented defaults:
// TCP transport, one thread, offered rate 1 Mbit/s, buffer 128 KiB, port
// 5001, time 10s. The 1470-byte UDP buffer is applied by cmd/netperf when
// -udp is given without -len. TTL is left at 0, which sets no TTL option
// for unicast or multicast.
func NewSettings( )( *Settings ) {
    return &Settings{
        Transport      : TransportTCP,
        Port           : 5001,
        Threads        : 1,
        BufLen         : 128 * 1024,
        Duration       : 10 * time.Second,
        IntervalLength : 0,
        OfferedRate    : 1_000_000,
    }
}

// SetInterrupted flips the process-wide cooperative interrupt flag,
// polled by traffic threads between I/Os and by the reporter between
// drains.
func ( s *Settings )SetInterrupted( ) {
    s.interrupted = true
}

// Interrupted reports the current value of the cooperative interrupt
// flag.
func ( s *Settings )Interrupted( )( bool ) {
    return s.interrupted
}

// InterruptedPtr exposes a *bool view onto the flag for code (like
// internal/traffic.Config) that polls it directly.
func ( s *Settings )InterruptedPtr( )( *bool ) {
    return &s.interrupted
}
