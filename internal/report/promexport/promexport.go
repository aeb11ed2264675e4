// Package promexport is a StatisticsEmitter that mirrors every emitted
// interval onto Prometheus gauges, serving the --metrics-addr surface.
// It follows the same "one emitter, one sink" shape as
// internal/report/format, wired to github.com/prometheus/client_golang
// instead of an io.Writer.
package promexport

import (
    "context"
    "net/http"
    "time"

    "github.com/golang/glog"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/camelinx/netperfd/internal/report"
)

// Emitter publishes each flow's most recent interval as a set of gauges
// labeled by transfer_id, so a single running netperfd exposes one time
// series per parallel thread plus the group sum.
type Emitter struct {
    bitsPerSecond *prometheus.GaugeVec
    bytesTotal    *prometheus.GaugeVec
    datagramLoss  *prometheus.GaugeVec
    jitterSeconds *prometheus.GaugeVec

    server *http.Server
}

// New registers the gauge vectors against a fresh registry and starts an
// HTTP server on addr serving /metrics. The returned Emitter should be
// added to a report.Reporter via AddEmitter.
func New( addr string )( *Emitter, error ) {
    registry := prometheus.NewRegistry( )

    e := &Emitter{
        bitsPerSecond : promauto.With( registry ).NewGaugeVec( prometheus.GaugeOpts{
            Name : "netperfd_bits_per_second",
            Help : "Most recent interval throughput in bits per second.",
        }, [ ]string{ "transfer_id" } ),
        bytesTotal : promauto.With( registry ).NewGaugeVec( prometheus.GaugeOpts{
            Name : "netperfd_bytes_total",
            Help : "Bytes transferred in the most recent interval.",
        }, [ ]string{ "transfer_id" } ),
        datagramLoss : promauto.With( registry ).NewGaugeVec( prometheus.GaugeOpts{
            Name : "netperfd_datagram_loss_ratio",
            Help : "Fraction of UDP datagrams lost in the last interval.",
        }, [ ]string{ "transfer_id" } ),
        jitterSeconds : promauto.With( registry ).NewGaugeVec( prometheus.GaugeOpts{
            Name : "netperfd_jitter_seconds",
            Help : "RFC 1889 smoothed jitter estimate in seconds.",
        }, [ ]string{ "transfer_id" } ),
    }

    mux := http.NewServeMux( )
    mux.Handle( "/metrics", promhttp.HandlerFor( registry, promhttp.HandlerOpts{ } ) )

    srv := &http.Server{ Addr: addr, Handler: mux }
    go func( ) {
        if err := srv.ListenAndServe( ); err != nil && err != http.ErrServerClosed {
            glog.Errorf( "promexport: server: %v", err )
        }
    }( )

    e.server = srv
    return e, nil
}

// Shutdown stops the metrics HTTP server.
func ( e *Emitter )Shutdown( ) {
    ctx, cancel := context.WithTimeout( context.Background( ), 5*time.Second )
    defer cancel( )
    e.server.Shutdown( ctx )
}

func itoa( id int )( string ) {
    if id == 0 {
        return "0"
    }
    neg := id < 0
    if neg {
        id = -id
    }
    var buf [ 20 ]byte
    i := len( buf )
    for id > 0 {
        i--
        buf[ i ] = byte( '0' + id%10 )
        id /= 10
    }
    if neg {
        i--
        buf[ i ] = '-'
    }
    return string( buf[ i: ] )
}

func ( e *Emitter )EmitInterval( info *report.TransferInfo ) {
    label := itoa( info.TransferID )
    e.bitsPerSecond.WithLabelValues( label ).Set( bitsPerSecond( info ) )
    e.bytesTotal.WithLabelValues( label ).Set( float64( info.TotalLen ) )
    e.jitterSeconds.WithLabelValues( label ).Set( info.Jitter )

    if info.UDP && info.CntDatagrams > 0 {
        e.datagramLoss.WithLabelValues( label ).Set( float64( info.CntError ) / float64( info.CntDatagrams ) )
    }
}

func ( e *Emitter )EmitSum( info *report.TransferInfo ) {
    label := "sum"
    e.bitsPerSecond.WithLabelValues( label ).Set( bitsPerSecond( info ) )
    e.bytesTotal.WithLabelValues( label ).Set( float64( info.TotalLen ) )
}

func ( e *Emitter )EmitConnection( conn *report.ConnectionInfo )  { }
func ( e *Emitter )EmitSettings( data *report.ReporterData )      { }

func bitsPerSecond( info *report.TransferInfo )( float64 ) {
    span := info.IntervalEnd - info.IntervalStart
    if span <= 0 {
        return 0
    }
    return float64( info.TotalLen ) * 8 / span
}
