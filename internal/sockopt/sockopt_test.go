package sockopt

import (
    "net"
    "testing"
)

func testLoopbackConn( t *testing.T )( *net.TCPConn ) {
    t.Helper( )

    ln, err := net.Listen( "tcp", "127.0.0.1:0" )
    if err != nil {
        t.Fatalf( "Listen: %v", err )
    }
    defer ln.Close( )

    dialed := make( chan *net.TCPConn, 1 )
    go func( ) {
        c, err := ln.Accept( )
        if err != nil {
            dialed <- nil
            return
        }
        dialed <- c.( *net.TCPConn )
    }( )

    conn, err := net.Dial( "tcp", ln.Addr( ).String( ) )
    if err != nil {
        t.Fatalf( "Dial: %v", err )
    }

    <-dialed

    return conn.( *net.TCPConn )
}

func TestApplyZeroOptionsDoesNotError( t *testing.T ) {
    conn := testLoopbackConn( t )
    defer conn.Close( )

    if err := Apply( conn, Options{ } ); err != nil {
        t.Fatalf( "Apply( zero Options ) = %v, want nil", err )
    }
}

func TestApplyWindowSize( t *testing.T ) {
    conn := testLoopbackConn( t )
    defer conn.Close( )

    if err := Apply( conn, Options{ WindowSize: 65536 } ); err != nil {
        t.Fatalf( "Apply( WindowSize ) = %v, want nil", err )
    }
}
