// Package format holds the default StatisticsEmitter implementations:
// a human-readable text writer styled on iperf's bandwidth/loss/jitter
// summary line, a CSV writer for machine consumption, and a file sink
// wrapping either. All three satisfy report.StatisticsEmitter and are
// safe for concurrent use since the Reporter drains records from a
// single goroutine and calls emitters synchronously.
package format

import (
    "fmt"
    "io"
    "sync"

    "github.com/golang/glog"

    "github.com/camelinx/netperfd/internal/report"
)

// TextEmitter writes one formatted line per interval/sum row: a single
// sprintf per event, no buffering.
type TextEmitter struct {
    mu       sync.Mutex
    w        io.Writer
    enhanced bool
}

// NewTextEmitter wraps w (typically os.Stdout) with the default
// formatter. enhanced adds the transit (latency) min/mean/max column to
// the base bandwidth line; UDP rows carry loss and jitter either way.
func NewTextEmitter( w io.Writer, enhanced bool )( *TextEmitter ) {
    return &TextEmitter{ w: w, enhanced: enhanced }
}

func ( e *TextEmitter )EmitInterval( info *report.TransferInfo ) {
    e.writeTransfer( info, "" )
}

func ( e *TextEmitter )EmitSum( info *report.TransferInfo ) {
    e.writeTransfer( info, " (sum)" )
}

func ( e *TextEmitter )writeTransfer( info *report.TransferInfo, suffix string ) {
    e.mu.Lock( )
    defer e.mu.Unlock( )

    bitsPerSec := 0.0
    if span := info.IntervalEnd - info.IntervalStart; span > 0 {
        bitsPerSec = float64( info.TotalLen ) * 8 / span
    }

    line := fmt.Sprintf( "[%3d] %6.1f-%6.1f sec  %10s  %10s%s",
        info.TransferID, info.IntervalStart, info.IntervalEnd,
        formatBytes( info.TotalLen ), formatBitrate( bitsPerSec ), suffix )

    if info.UDP {
        lossPct := 0.0
        if info.CntDatagrams > 0 {
            lossPct = 100 * float64( info.CntError ) / float64( info.CntDatagrams )
        }
        line += fmt.Sprintf( "  %d/%d (%.2g%%)  jitter %.3f ms", info.CntError, info.CntDatagrams, lossPct, info.Jitter*1000 )
    }

    if e.enhanced && info.Transit.Cnt > 0 {
        line += fmt.Sprintf( "  transit min/mean/max %.3f/%.3f/%.3f ms",
            info.Transit.Min*1000, info.Transit.Mean*1000, info.Transit.Max*1000 )
    }

    if info.LatencySuppressed {
        line += "  (latency suppressed)"
    }

    if _, err := fmt.Fprintln( e.w, line ); err != nil {
        glog.Errorf( "format: text write: %v", err )
    }
}

func ( e *TextEmitter )EmitConnection( conn *report.ConnectionInfo ) {
    e.mu.Lock( )
    defer e.mu.Unlock( )

    fmt.Fprintf( e.w, "[%3d] local %s connected to %s\n", 0, conn.LocalAddr, conn.PeerAddr )
}

func ( e *TextEmitter )EmitSettings( data *report.ReporterData ) {
    e.mu.Lock( )
    defer e.mu.Unlock( )

    fmt.Fprintf( e.w, "buffer %d TCP window %d port %d\n", data.Settings.BufLen, data.Settings.TCPWindow, data.Settings.Port )
}

func formatBytes( n uint64 )( string ) {
    switch {
        case n >= 1 << 30:
            return fmt.Sprintf( "%.2f GBytes", float64( n )/ ( 1 << 30 ) )
        case n >= 1 << 20:
            return fmt.Sprintf( "%.2f MBytes", float64( n )/ ( 1 << 20 ) )
        case n >= 1 << 10:
            return fmt.Sprintf( "%.2f KBytes", float64( n )/ ( 1 << 10 ) )
        default:
            return fmt.Sprintf( "%d Bytes", n )
    }
}

func formatBitrate( bitsPerSec float64 )( string ) {
    switch {
        case bitsPerSec >= 1e9:
            return fmt.Sprintf( "%.2f Gbits/sec", bitsPerSec/1e9 )
        case bitsPerSec >= 1e6:
            return fmt.Sprintf( "%.2f Mbits/sec", bitsPerSec/1e6 )
        case bitsPerSec >= 1e3:
            return fmt.Sprintf( "%.2f Kbits/sec", bitsPerSec/1e3 )
        default:
            return fmt.Sprintf( "%.0f bits/sec", bitsPerSec )
    }
}
