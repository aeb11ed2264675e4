package traffic

import (
    "context"
    "net"
    "testing"
    "time"

    "github.com/camelinx/netperfd/internal/flow"
    "github.com/camelinx/netperfd/internal/report"
)

func testReporter( t *testing.T )( *report.Reporter, context.CancelFunc ) {
    t.Helper( )

    r := report.NewReporter( 0, false )
    ctx, cancel := context.WithCancel( context.Background( ) )
    go r.Run( ctx )

    return r, cancel
}

func testTCPPair( t *testing.T )( client, server *net.TCPConn ) {
    t.Helper( )

    ln, err := net.Listen( "tcp", "127.0.0.1:0" )
    if err != nil {
        t.Fatalf( "Listen: %v", err )
    }
    defer ln.Close( )

    accepted := make( chan *net.TCPConn, 1 )
    go func( ) {
        c, err := ln.Accept( )
        if err != nil {
            accepted <- nil
            return
        }
        accepted <- c.( *net.TCPConn )
    }( )

    c, err := net.Dial( "tcp", ln.Addr( ).String( ) )
    if err != nil {
        t.Fatalf( "Dial: %v", err )
    }

    server = <-accepted
    return c.( *net.TCPConn ), server
}

func testUDPPair( t *testing.T )( client, server *net.UDPConn ) {
    t.Helper( )

    serverAddr, err := net.ResolveUDPAddr( "udp", "127.0.0.1:0" )
    if err != nil {
        t.Fatalf( "ResolveUDPAddr: %v", err )
    }
    server, err = net.ListenUDP( "udp", serverAddr )
    if err != nil {
        t.Fatalf( "ListenUDP: %v", err )
    }

    client, err = net.DialUDP( "udp", nil, server.LocalAddr( ).( *net.UDPAddr ) )
    if err != nil {
        t.Fatalf( "DialUDP: %v", err )
    }

    return client, server
}

func TestEncodeDecodeIDRoundTrip( t *testing.T ) {
    buf := make( [ ]byte, 64 )
    encodeID( buf, 12345 )

    if got := DecodeID( buf, len( buf ) ); got != 12345 {
        t.Fatalf( "DecodeID - expected 12345, saw %v", got )
    }
}

func TestDecodeIDShortBufferReturnsZero( t *testing.T ) {
    buf := make( [ ]byte, 4 )
    if got := DecodeID( buf, len( buf ) ); got != 0 {
        t.Fatalf( "DecodeID - expected 0 for a buffer shorter than idLen, saw %v", got )
    }
}

// TestUDPFinalRecordDoesNotInflateDatagramCount guards against the final
// close record being counted as a real datagram: it must arrive as an
// Empty tick, excluded from accountDatagram, so CntDatagrams matches the
// number of payload-carrying datagrams actually sent.
func TestUDPFinalRecordDoesNotInflateDatagramCount( t *testing.T ) {
    r, cancel := testReporter( t )
    defer cancel( )

    client, server := testUDPPair( t )
    defer server.Close( )

    rcvdHead := flow.InitReport( r, flow.InitSettings{ Handler: report.UDPReceiver, UDP: true } )
    sentHead := flow.InitReport( r, flow.InitSettings{ Handler: report.UDPSender, UDP: true } )
    flow.PostReport( r, rcvdHead )
    flow.PostReport( r, sentHead )

    interrupted := false
    done := make( chan struct{ } )
    go func( ) {
        RunUDPReceiver( server, &Config{
            Head         : rcvdHead,
            Multi        : nil,
            BufLen       : 512,
            IntervalTick : 50 * time.Millisecond,
            Interrupted  : &interrupted,
        }, DecodeID )
        close( done )
    }( )

    RunUDPSender( client, &Config{
        Head      : sentHead,
        Multi     : nil,
        BufLen    : 512,
        ByteLimit : 512 * 3,
    } )

    interrupted = true
    server.SetReadDeadline( time.Now( ) )

    select {
        case <-done:
        case <-time.After( 2 * time.Second ):
            t.Fatalf( "receiver goroutine did not exit" )
    }

    if rcvdHead.Report.CntDatagrams != 3 {
        t.Fatalf( "CntDatagrams - expected exactly 3, saw %v", rcvdHead.Report.CntDatagrams )
    }
}

func TestTCPSenderReceiverByteCountMatches( t *testing.T ) {
    r, cancel := testReporter( t )
    defer cancel( )

    client, server := testTCPPair( t )

    sentHead := flow.InitReport( r, flow.InitSettings{ Handler: report.TCPSender, TCP: true } )
    rcvdHead := flow.InitReport( r, flow.InitSettings{ Handler: report.TCPReceiver, TCP: true } )
    flow.PostReport( r, sentHead )
    flow.PostReport( r, rcvdHead )

    interrupted := false
    byteLimit := int64( 4096 )

    done := make( chan struct{ } )
    go func( ) {
        RunTCPReceiver( server, &Config{
            Head         : rcvdHead,
            Multi        : nil,
            BufLen       : 512,
            IntervalTick : 50 * time.Millisecond,
            Interrupted  : &interrupted,
        } )
        close( done )
    }( )

    RunTCPSender( client, &Config{
        Head      : sentHead,
        Multi      : nil,
        BufLen    : 512,
        ByteLimit : byteLimit,
    } )

    // Closing the sending side lets the receiver read every buffered byte
    // and stop on EOF.
    client.Close( )

    select {
        case <-done:
        case <-time.After( 2 * time.Second ):
            t.Fatalf( "receiver goroutine did not exit" )
    }

    if sentHead.Report.TotalLen != uint64( byteLimit ) {
        t.Fatalf( "sender TotalLen - expected %v, saw %v", byteLimit, sentHead.Report.TotalLen )
    }
    if rcvdHead.Report.TotalLen != sentHead.Report.TotalLen {
        t.Fatalf( "receiver TotalLen - expected %v, saw %v", sentHead.Report.TotalLen, rcvdHead.Report.TotalLen )
    }
}
