package engine

import (
    "context"
    "encoding/binary"
    "fmt"
    "io"
    "net"
    "os"
    "os/signal"
    "sync"
    "syscall"
    "time"

    "github.com/golang/glog"
    "golang.org/x/time/rate"

    "github.com/camelinx/netperfd/internal/flow"
    "github.com/camelinx/netperfd/internal/helpers"
    "github.com/camelinx/netperfd/internal/histogram"
    "github.com/camelinx/netperfd/internal/negotiation"
    "github.com/camelinx/netperfd/internal/report"
    "github.com/camelinx/netperfd/internal/report/format"
    "github.com/camelinx/netperfd/internal/report/promexport"
    "github.com/camelinx/netperfd/internal/sockopt"
    "github.com/camelinx/netperfd/internal/stats"
    "github.com/camelinx/netperfd/internal/traffic"
)

// Run resolves settings into a client or server run: install the SIGINT
// handler, build the reporter and its emitters, fan out -P parallel
// flows under one MultiHeader and sync.WaitGroup, wait for every flow to
// finish, and return the process exit code (0 normal, 1 fatal setup
// failure).
func Run( settings *Settings )( int ) {
    sigCh := make( chan os.Signal, 1 )
    signal.Notify( sigCh, syscall.SIGINT, syscall.SIGTERM )
    go func( ) {
        <-sigCh
        glog.Infof( "engine: interrupt received, draining in-flight flows" )
        settings.SetInterrupted( )
    }( )

    reporter := report.NewReporter( settings.IntervalLength.Seconds( ), settings.Enhanced )
    if err := wireEmitters( reporter, settings ); err != nil {
        glog.Errorf( "engine: wireEmitters: %v", err )
        return 1
    }

    ctx, cancel := context.WithCancel( context.Background( ) )
    defer cancel( )
    go reporter.Run( ctx )

    var err error
    switch settings.Role {
        case RoleServer:
            err = runServer( reporter, settings )
        case RoleClient:
            err = runClient( reporter, settings )
    }

    cancel( )
    glog.Flush( )

    if err != nil {
        glog.Errorf( "engine: %v", err )
        return 1
    }
    return 0
}

func wireEmitters( reporter *report.Reporter, settings *Settings )( error ) {
    if len( settings.MetricsAddr ) > 0 {
        promEmitter, err := promexport.New( settings.MetricsAddr )
        if err != nil {
            return fmt.Errorf( "start metrics listener: %w", err )
        }
        reporter.AddEmitter( promEmitter )
    }

    if len( settings.OutputFile ) > 0 {
        f, err := format.NewFileEmitter( settings.OutputFile, settings.CSVOutput )
        if err != nil {
            return fmt.Errorf( "open -o file: %w", err )
        }
        reporter.AddEmitter( f )
        return nil
    }

    if settings.CSVOutput {
        reporter.AddEmitter( format.NewCSVEmitter( os.Stdout ) )
        return nil
    }

    reporter.AddEmitter( format.NewTextEmitter( os.Stdout, settings.Enhanced ) )
    return nil
}

// runClient resolves the negotiated mode, opens settings.Threads
// connections under one MultiHeader barrier, and blocks until every
// flow's WaitGroup entry completes. Each TCP connection, once
// established, writes the negotiation header before handing the socket
// to internal/traffic; UDP flows send no header (see startClientFlow).
func runClient( reporter *report.Reporter, settings *Settings )( error ) {
    multi := report.NewMultiHeader( settings.Threads )
    limiter := rateLimiter( settings )

    idGen := helpers.NewIdGenerator( )
    idGen.InitIdBlock( settings.Threads )

    var wg sync.WaitGroup
    errCh := make( chan error, settings.Threads )

    for i := 0; i < settings.Threads; i++ {
        wg.Add( 1 )
        go func( transferID int ) {
            defer wg.Done( )
            glog.V( 1 ).Infof( "engine: flow %d correlation id %s", transferID, idGen.TokenFor( transferID-1 ) )
            if err := startClientFlow( reporter, multi, settings, transferID, limiter ); err != nil {
                errCh <- err
            }
        }( i + 1 )
    }

    wg.Wait( )
    close( errCh )

    for err := range errCh {
        if err != nil {
            return err
        }
    }
    return nil
}

// buildNegotiationHeader resolves settings' mode flags into the wire
// header a client writes to its data socket before any traffic byte.
// The CLI layer does not reject combinations of Bidir/Reverse/Dual/
// TradeOff; the first one set, in that order, wins.
func buildNegotiationHeader( settings *Settings )( *negotiation.Header ) {
    h := &negotiation.Header{
        Flags      : negotiation.FlagExtend | negotiation.FlagVersion1,
        NumThreads : uint32( settings.Threads ),
        Port       : uint32( settings.Port ),
        BufferLen  : uint32( settings.BufLen ),
        WindowSize : uint32( settings.TCPWindow ),
    }

    if settings.Duration > 0 {
        h.Amount = negotiation.EncodeAmountTime( settings.Duration.Seconds( ) )
    } else {
        h.Amount = negotiation.EncodeAmountBytes( uint32( settings.ByteLimit ) )
    }

    ext := &negotiation.Extend{ Type: negotiation.TypeClientHdr }
    switch {
        case settings.Bidir:
            ext.Flags |= negotiation.ExtendBidir
        case settings.Reverse:
            ext.Flags |= negotiation.ExtendReverse
        case settings.Dual:
            h.Flags |= negotiation.FlagRunNow
        case settings.TradeOff:
            // RUN_NOW absent selects TradeOff under ResolveMode's tie-break.
    }
    if settings.OfferedRatePPS {
        ext.Flags |= negotiation.ExtendUnitsPPS
    }
    h.Extend = ext

    if settings.Transport == TransportUDP {
        h.Flags |= negotiation.FlagUDPTests
        h.UDP = &negotiation.UDPTrailer{ }
    }

    return h
}

// writeNegotiationHeader encodes and writes settings' negotiation header
// to conn as the client's first bytes on the data socket.
func writeNegotiationHeader( conn net.Conn, settings *Settings )( error ) {
    raw, err := buildNegotiationHeader( settings ).Encode( )
    if err != nil {
        return fmt.Errorf( "encode negotiation header: %w", err )
    }
    _, err = conn.Write( raw )
    return err
}

// readNegotiationHeader reads and decodes the negotiation header (base
// block plus any extended block and UDP trailer its flags announce) a
// client writes before any traffic byte. Unknown reserved bits and a
// short base read past the deadline are tolerated: the server falls back
// to compatibility mode rather than rejecting the connection.
func readNegotiationHeader( conn net.Conn )( *negotiation.Header, error ) {
    conn.SetReadDeadline( time.Now( ).Add( time.Second ) )
    defer conn.SetReadDeadline( time.Time{ } )

    raw := make( [ ]byte, 256 )
    n, err := io.ReadFull( conn, raw[ :24 ] )
    if err != nil {
        return &negotiation.Header{ }, nil
    }

    // The base flags say which optional blocks follow: a 28-byte
    // extended block when EXTEND is set, then a 12-byte UDP trailer when
    // UDPTESTS is also set.
    flags := binary.BigEndian.Uint32( raw[ :4 ] )
    if flags & negotiation.FlagExtend != 0 {
        want := 24 + 28
        if flags & negotiation.FlagUDPTests != 0 {
            want += 12
        }
        if n, err = io.ReadFull( conn, raw[ 24:want ] ); err != nil {
            return &negotiation.Header{ }, nil
        }
        n += 24
    }

    h, err := negotiation.Decode( raw[ :n ] )
    if err != nil {
        glog.Errorf( "engine: negotiation decode: %v", err )
        return &negotiation.Header{ }, nil
    }
    return h, nil
}

// isochStats builds the descriptive (non-accumulating) half of a flow's
// IsochStats from settings: FPS/Mean/Variance describe the modelled VBR
// source and are fixed for the life of the flow, unlike the slip/frame
// counters accountFrame maintains on top of this starting value.
func isochStats( settings *Settings )( stats.IsochStats ) {
    if settings.IsochFPS <= 0 {
        return stats.IsochStats{ }
    }
    return stats.IsochStats{
        FPS      : settings.IsochFPS,
        Mean     : float64( settings.IsochMeanSize ),
        Variance : settings.IsochVariance,
    }
}

// frameLatencyHistogram builds the per-frame arrival latency histogram
// for an isochronous flow, scoped to settings.IsochFPS's own period
// (bins out to twice one frame period, since a healthy source delivers a
// frame within about one period of the next one starting) or nil when
// the flow is not isochronous.
func frameLatencyHistogram( settings *Settings )( *histogram.Histogram ) {
    if settings.IsochFPS <= 0 {
        return nil
    }
    period := 1.0 / float64( settings.IsochFPS )
    return histogram.New( period / 50, 100, 0, 2 * period, "s" )
}

func baseConnectionInfo( local, peer net.Addr, settings *Settings )( report.ConnectionInfo ) {
    conn := report.ConnectionInfo{ }
    if local != nil {
        conn.LocalAddr = local.String( )
    }
    if peer != nil {
        conn.PeerAddr = peer.String( )
    }
    conn.WindowSizeRequested = settings.TCPWindow
    return conn
}

func startClientFlow( reporter *report.Reporter, multi *report.MultiHeader, settings *Settings, transferID int, limiter *rate.Limiter )( error ) {
    addr := fmt.Sprintf( "%s:%d", settings.Host, settings.Port )

    cfg := &traffic.Config{
        Multi        : multi,
        BufLen       : settings.BufLen,
        Duration     : settings.Duration,
        Infinite     : settings.Infinite,
        ByteLimit    : settings.ByteLimit,
        IntervalTick : 200 * time.Millisecond,
        RateLimiter  : limiter,
        Interrupted  : settings.InterruptedPtr( ),
    }

    if settings.Transport == TransportUDP {
        resolved, err := net.ResolveUDPAddr( "udp", addr )
        if err != nil {
            return fmt.Errorf( "resolve udp %s: %w", addr, err )
        }
        conn, err := net.DialUDP( "udp", nil, resolved )
        if err != nil {
            return fmt.Errorf( "dial udp %s: %w", addr, err )
        }

        isoch := settings.IsochFPS > 0
        head := flow.InitReport( reporter, flow.InitSettings{
            Handler               : report.UDPSender,
            Mode                  : report.ThreadModeClient,
            TransferID            : transferID,
            Multi                 : multi,
            Connection            : baseConnectionInfo( conn.LocalAddr( ), conn.RemoteAddr( ), settings ),
            UDP                   : true,
            Isochronous           : isoch,
            IsochStats            : isochStats( settings ),
            FrameLatencyHistogram : frameLatencyHistogram( settings ),
        } )
        flow.PostReport( reporter, head )

        cfg.Head = head
        cfg.IsochFPS = settings.IsochFPS
        cfg.IsochMeanSize = float64( settings.IsochMeanSize )
        cfg.IsochVariance = settings.IsochVariance

        if isoch {
            traffic.RunUDPIsochSender( conn, cfg )
        } else {
            traffic.RunUDPSender( conn, cfg )
        }
        return nil
    }

    conn, err := net.Dial( "tcp", addr )
    if err != nil {
        return fmt.Errorf( "dial tcp %s: %w", addr, err )
    }
    tcpConn := conn.( *net.TCPConn )

    if err := writeNegotiationHeader( tcpConn, settings ); err != nil {
        glog.Errorf( "engine: write negotiation header: %v", err )
    }

    head := flow.InitReport( reporter, flow.InitSettings{
        Handler    : report.TCPSender,
        Mode       : report.ThreadModeClient,
        TransferID : transferID,
        Multi      : multi,
        Connection : baseConnectionInfo( tcpConn.LocalAddr( ), tcpConn.RemoteAddr( ), settings ),
        TCP        : true,
    } )
    flow.PostReport( reporter, head )

    cfg.Head = head
    traffic.RunTCPSender( tcpConn, cfg )
    return nil
}

// runServer listens on settings.Port and spawns one receiver goroutine
// per accepted TCP connection (HandleTcpLis's pattern) or drives the UDP
// listener directly. Each accepted flow gets its own single-member
// MultiHeader: the loop decodes each TCP connection's negotiation header
// only to log the resolved mode, and does not use its thread count.
func runServer( reporter *report.Reporter, settings *Settings )( error ) {
    addr := fmt.Sprintf( "%s:%d", settings.BindHost, settings.Port )

    if settings.Transport == TransportUDP {
        udpAddr, err := net.ResolveUDPAddr( "udp", addr )
        if err != nil {
            return fmt.Errorf( "resolve udp %s: %w", addr, err )
        }
        conn, err := net.ListenUDP( "udp", udpAddr )
        if err != nil {
            return fmt.Errorf( "listen udp %s: %w", addr, err )
        }
        defer conn.Close( )

        multi := report.NewMultiHeader( 1 )
        head := flow.InitReport( reporter, flow.InitSettings{
            Handler : report.UDPReceiver,
            Mode    : report.ThreadModeServer,
            Multi   : multi,
            UDP     : true,
        } )
        flow.PostReport( reporter, head )

        cfg := &traffic.Config{ Head: head, Multi: multi, BufLen: settings.BufLen, Interrupted: settings.InterruptedPtr( ) }
        traffic.RunUDPReceiver( conn, cfg, traffic.DecodeID )
        return nil
    }

    ln, err := sockopt.ListenConfig.Listen( context.Background( ), "tcp", addr )
    if err != nil {
        return fmt.Errorf( "listen tcp %s: %w", addr, err )
    }
    defer ln.Close( )

    var wg sync.WaitGroup
    tcpLn := ln.( *net.TCPListener )

    for !settings.Interrupted( ) {
        tcpLn.SetDeadline( time.Now( ).Add( time.Second ) )

        conn, err := tcpLn.Accept( )
        if err != nil {
            if ne, ok := err.( net.Error ); ok && ne.Timeout( ) {
                continue
            }
            glog.Errorf( "engine: accept: %v", err )
            continue
        }

        wg.Add( 1 )
        go func( c *net.TCPConn ) {
            defer wg.Done( )

            negHeader, _ := readNegotiationHeader( c )
            glog.V( 1 ).Infof( "engine: negotiated mode %v from %v", negHeader.ResolveMode( ), c.RemoteAddr( ) )

            multi := report.NewMultiHeader( 1 )
            head := flow.InitReport( reporter, flow.InitSettings{
                Handler    : report.TCPReceiver,
                Mode       : report.ThreadModeServer,
                Multi      : multi,
                Connection : baseConnectionInfo( c.LocalAddr( ), c.RemoteAddr( ), settings ),
                TCP        : true,
            } )
            flow.PostReport( reporter, head )

            cfg := &traffic.Config{ Head: head, Multi: multi, BufLen: settings.BufLen, IntervalTick: 200 * time.Millisecond, Interrupted: settings.InterruptedPtr( ) }
            traffic.RunTCPReceiver( c, cfg )
        }( conn.( *net.TCPConn ) )
    }

    wg.Wait( )
    return nil
}

// rateLimiter converts an offered bits/s rate (the -b CLI option) into a
// bytes/s token bucket sized to one buffer's worth of burst, for
// golang.org/x/time/rate to govern client senders (TCP, UDP and
// isochronous).
func rateLimiter( settings *Settings )( *rate.Limiter ) {
    if settings.OfferedRate <= 0 {
        return nil
    }

    bytesPerSec := settings.OfferedRate / 8
    if settings.OfferedRatePPS {
        bytesPerSec = settings.OfferedRate * int64( settings.BufLen )
    }

    return rate.NewLimiter( rate.Limit( bytesPerSec ), settings.BufLen )
}
