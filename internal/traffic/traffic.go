// Package traffic implements the concrete TCP and UDP sender/receiver
// goroutines that drive internal/flow: cross the group barrier, stamp
// the epoch timestamp, run an I/O loop honoring a cooperative interrupt
// flag, post a final record, call EndReport. Flows are fanned out under
// one sync.WaitGroup per parallel client/server run.
package traffic

import (
    "context"
    "encoding/binary"
    "io"
    "math"
    "math/rand"
    "net"
    "time"

    "github.com/golang/glog"
    "golang.org/x/time/rate"

    "github.com/camelinx/netperfd/internal/clock"
    "github.com/camelinx/netperfd/internal/flow"
    "github.com/camelinx/netperfd/internal/report"
    "github.com/camelinx/netperfd/internal/ring"
    "github.com/camelinx/netperfd/internal/sockopt"
)

// idLen is the width, in bytes, of the big-endian sequence id a UDP
// sender embeds at the front of every datagram so the receiver's
// DecodeID can recover it for loss/out-of-order accounting.
const idLen = 8

// encodeID writes id as the first idLen bytes of buf. A buffer shorter
// than idLen carries no id; DecodeID reads such a datagram back as 0.
func encodeID( buf [ ]byte, id int64 ) {
    if len( buf ) < idLen {
        return
    }
    binary.BigEndian.PutUint64( buf[ :idLen ], uint64( id ) )
}

// DecodeID parses the sequence id a UDP sender embedded via encodeID. It
// is exposed for callers wiring RunUDPReceiver's decodeID parameter.
func DecodeID( buf [ ]byte, n int )( int64 ) {
    if n < idLen {
        return 0
    }
    return int64( binary.BigEndian.Uint64( buf[ :idLen ] ) )
}

// Config is everything one flow's goroutine needs: its report head, the
// connection to drive, and the behaviors the CLI surface resolves
// (duration/amount, buffer length, offered rate).
type Config struct {
    Head   *report.ReportHeader
    Multi  *report.MultiHeader

    BufLen int

    Duration  time.Duration
    Infinite  bool
    ByteLimit int64

    IntervalTick time.Duration

    RateLimiter *rate.Limiter

    Interrupted *bool

    IsochFPS      int
    IsochMeanSize float64
    IsochVariance float64
}

// shouldStop reports whether cfg's stop condition (interrupt, duration,
// or byte count) has been reached.
func ( cfg *Config )shouldStop( start time.Time, sent int64 )( bool ) {
    if cfg.Interrupted != nil && *cfg.Interrupted {
        return true
    }
    if cfg.Infinite {
        return false
    }
    if cfg.Duration > 0 && time.Since( start ) >= cfg.Duration {
        return true
    }
    if cfg.ByteLimit > 0 && sent >= cfg.ByteLimit {
        return true
    }
    return false
}

// RunTCPSender drives a TCP write loop over conn: it crosses cfg.Head's
// group barrier, stamps the epoch, then writes fixed-size buffers until
// the stop condition fires, posting one PacketRecord per write and a
// final record on exit.
func RunTCPSender( conn *net.TCPConn, cfg *Config ) {
    if err := sockopt.Apply( conn, sockopt.Options{ } ); err != nil {
        glog.Errorf( "traffic: sockopt.Apply: %v", err )
    }

    epoch := clock.Now( )
    cfg.Multi.BarrierClient( epoch )

    buf := make( [ ]byte, cfg.BufLen )
    var id, sent int64
    start := time.Now( )

    for !cfg.shouldStop( start, sent ) {
        if cfg.RateLimiter != nil {
            if err := cfg.RateLimiter.WaitN( context.Background( ), cfg.BufLen ); err != nil {
                glog.Errorf( "traffic: rate limiter: %v", err )
            }
        }

        n, err := conn.Write( buf )
        sentTime := clock.Now( )

        rec := flow.NewPacketRecord( id, int64( n ), sentTime, sentTime )
        if err != nil {
            glog.Errorf( "traffic: TCP write: %v", err )
            rec.WriteErr = ring.WriteErrFatal
            flow.ReportPacket( cfg.Head, rec )
            break
        }

        sent += int64( n )
        id++
        flow.ReportPacket( cfg.Head, rec )
    }

    flow.CloseReport( cfg.Head, flow.EmptyTick( clock.Now( ) ) )
    flow.EndReport( cfg.Head )
    flow.FreeReport( cfg.Head )
}

// RunTCPReceiver drives a TCP read loop over conn, posting one
// PacketRecord per read and a final record on EOF, interrupt, or
// connection reset.
func RunTCPReceiver( conn *net.TCPConn, cfg *Config ) {
    if err := sockopt.Apply( conn, sockopt.Options{ } ); err != nil {
        glog.Errorf( "traffic: sockopt.Apply: %v", err )
    }

    epoch := clock.Now( )
    cfg.Multi.BarrierClient( epoch )

    buf := make( [ ]byte, cfg.BufLen )
    var id int64
    lastActivity := time.Now( )

    for {
        if cfg.Interrupted != nil && *cfg.Interrupted {
            break
        }

        conn.SetReadDeadline( time.Now( ).Add( cfg.tickOrDefault( ) ) )
        n, err := conn.Read( buf )
        now := clock.Now( )

        if err != nil {
            if isTimeout( err ) {
                flow.ReportPacket( cfg.Head, flow.EmptyTick( now ) )
                if time.Since( lastActivity ) >= cfg.Duration && cfg.Duration > 0 {
                    break
                }
                continue
            }
            if err == io.EOF {
                break
            }
            glog.Errorf( "traffic: TCP read: %v", err )
            break
        }

        lastActivity = time.Now( )
        flow.ReportPacket( cfg.Head, flow.NewPacketRecord( id, int64( n ), now, now ) )
        id++
    }

    flow.CloseReport( cfg.Head, flow.EmptyTick( clock.Now( ) ) )
    flow.EndReport( cfg.Head )
    flow.FreeReport( cfg.Head )
}

// RunUDPSender drives a UDP write loop over conn, pacing with
// cfg.RateLimiter and embedding a monotonically increasing packet id in
// each datagram's payload (encodeID) and PacketRecord for the receiver's
// loss/out-of-order accounting.
func RunUDPSender( conn *net.UDPConn, cfg *Config ) {
    epoch := clock.Now( )
    cfg.Multi.BarrierClient( epoch )

    buf := make( [ ]byte, cfg.BufLen )
    var id, sent int64
    start := time.Now( )

    for !cfg.shouldStop( start, sent ) {
        if cfg.RateLimiter != nil {
            if err := cfg.RateLimiter.WaitN( context.Background( ), cfg.BufLen ); err != nil {
                glog.Errorf( "traffic: rate limiter: %v", err )
            }
        }

        encodeID( buf, id )
        n, err := conn.Write( buf )
        sentTime := clock.Now( )

        rec := flow.NewPacketRecord( id, int64( n ), sentTime, sentTime )
        if err != nil {
            glog.Errorf( "traffic: UDP write: %v", err )
            rec.WriteErr = ring.WriteErrAccounted
        }

        sent += int64( n )
        id++
        flow.ReportPacket( cfg.Head, rec )
    }

    flow.CloseReport( cfg.Head, flow.EmptyTick( clock.Now( ) ) )
    flow.EndReport( cfg.Head )
    flow.FreeReport( cfg.Head )
}

// RunUDPIsochSender drives an isochronous UDP write loop over conn: at
// cfg.IsochFPS frames per second it generates one frame whose byte
// length is jittered around cfg.IsochMeanSize with standard deviation
// sqrt(cfg.IsochVariance), splits it into cfg.BufLen-sized datagrams
// sharing one FrameID, and embeds the running sequence id the same way
// RunUDPSender does so the receiver's ordinary loss accounting still
// applies per-datagram on top of the per-frame accounting FrameID
// drives.
func RunUDPIsochSender( conn *net.UDPConn, cfg *Config ) {
    epoch := clock.Now( )
    cfg.Multi.BarrierClient( epoch )

    period := time.Second / time.Duration( cfg.IsochFPS )
    stddev := math.Sqrt( cfg.IsochVariance )

    ticker := time.NewTicker( period )
    defer ticker.Stop( )

    var id, sent, frameID int64
    start := time.Now( )

    for !cfg.shouldStop( start, sent ) {
        <-ticker.C

        frameStart := clock.Now( )
        frameSize := int64( cfg.IsochMeanSize + stddev * rand.NormFloat64( ) )
        if frameSize < int64( cfg.BufLen ) {
            frameSize = int64( cfg.BufLen )
        }

        prevFrameID := frameID
        frameID++
        remaining := frameSize

        for remaining > 0 && !cfg.shouldStop( start, sent ) {
            n := int64( cfg.BufLen )
            if remaining < n {
                n = remaining
            }

            // A frame's short tail is padded so it still carries its id.
            size := n
            if size < idLen {
                size = idLen
            }
            buf := make( [ ]byte, size )
            encodeID( buf, id )

            if cfg.RateLimiter != nil {
                if err := cfg.RateLimiter.WaitN( context.Background( ), int( n ) ); err != nil {
                    glog.Errorf( "traffic: rate limiter: %v", err )
                }
            }

            written, err := conn.Write( buf )
            sentTime := clock.Now( )
            remaining -= n

            rec := flow.NewIsochPacketRecord( id, int64( written ), sentTime, sentTime, frameStart, prevFrameID, frameID, frameSize, remaining )
            if err != nil {
                glog.Errorf( "traffic: UDP isoch write: %v", err )
                rec.WriteErr = ring.WriteErrAccounted
            }

            sent += int64( written )
            id++
            flow.ReportPacket( cfg.Head, rec )
        }
    }

    flow.CloseReport( cfg.Head, flow.EmptyTick( clock.Now( ) ) )
    flow.EndReport( cfg.Head )
    flow.FreeReport( cfg.Head )
}

// RunUDPReceiver drives a UDP read loop over conn. The embedded packet id
// from the sender's stream is parsed by the caller-supplied decode
// function so out-of-order/loss accounting sees the sender's sequence
// rather than a locally generated one.
func RunUDPReceiver( conn *net.UDPConn, cfg *Config, decodeID func( [ ]byte, int )( int64 ) ) {
    epoch := clock.Now( )
    cfg.Multi.BarrierClient( epoch )

    buf := make( [ ]byte, cfg.BufLen )

    for {
        if cfg.Interrupted != nil && *cfg.Interrupted {
            break
        }

        conn.SetReadDeadline( time.Now( ).Add( cfg.tickOrDefault( ) ) )
        n, _, err := conn.ReadFromUDP( buf )
        now := clock.Now( )

        if err != nil {
            if isTimeout( err ) {
                flow.ReportPacket( cfg.Head, flow.EmptyTick( now ) )
                continue
            }
            glog.Errorf( "traffic: UDP read: %v", err )
            break
        }

        id := int64( 0 )
        if decodeID != nil {
            id = decodeID( buf, n )
        }

        flow.ReportPacket( cfg.Head, flow.NewPacketRecord( id, int64( n ), now, now ) )
    }

    flow.CloseReport( cfg.Head, flow.EmptyTick( clock.Now( ) ) )
    flow.EndReport( cfg.Head )
    flow.FreeReport( cfg.Head )
}

func ( cfg *Config )tickOrDefault( )( time.Duration ) {
    if cfg.IntervalTick > 0 {
        return cfg.IntervalTick
    }
    return time.Second
}

func isTimeout( err error )( bool ) {
    ne, ok := err.( net.Error )
    return ok && ne.Timeout( )
}
