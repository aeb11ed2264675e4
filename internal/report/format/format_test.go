package format

import (
    "bytes"
    "strings"
    "testing"

    "github.com/camelinx/netperfd/internal/report"
)

func TestTextEmitterWritesBandwidthLine( t *testing.T ) {
    var buf bytes.Buffer
    e := NewTextEmitter( &buf, false )

    e.EmitInterval( &report.TransferInfo{
        TransferID    : 1,
        IntervalStart : 0,
        IntervalEnd   : 1,
        TotalLen      : 125000,
    } )

    out := buf.String( )
    if !strings.Contains( out, "Mbits/sec" ) && !strings.Contains( out, "Kbits/sec" ) && !strings.Contains( out, "bits/sec" ) {
        t.Fatalf( "expected a bitrate column, got %q", out )
    }
}

func TestCSVEmitterWritesHeaderOnce( t *testing.T ) {
    var buf bytes.Buffer
    e := NewCSVEmitter( &buf )

    e.EmitInterval( &report.TransferInfo{ TransferID: 1, IntervalEnd: 1 } )
    e.EmitInterval( &report.TransferInfo{ TransferID: 1, IntervalEnd: 2 } )

    lines := strings.Split( strings.TrimSpace( buf.String( ) ), "\n" )
    if len( lines ) != 3 {
        t.Fatalf( "expected header + 2 rows, got %d lines: %v", len( lines ), lines )
    }
    if !strings.HasPrefix( lines[ 0 ], "transfer_id," ) {
        t.Fatalf( "expected header row first, got %q", lines[ 0 ] )
    }
}
