// Package histogram implements a binned counter: it accepts (sample, now)
// pairs and produces a printable summary with configurable bin width,
// unit and confidence-interval percentiles. It backs the latency and
// per-frame latency distributions exposed by the --rx-histogram CLI
// option.
package histogram

import (
    "fmt"
    "strings"
    "sync"

    "github.com/camelinx/netperfd/internal/clock"
)

// Percentiles reported in String(), matching common iperf-family output.
var Percentiles = [ ]float64{ 0.50, 0.95, 0.99 }

type Histogram struct {
    mu          sync.Mutex

    binWidth    float64
    numBins     int
    lower       float64
    upper       float64
    unit        string

    bins        [ ]int64
    total       int64
    sum         float64
    lastUpdate  clock.Timestamp
}

// New builds a Histogram spanning [lowerBound, upperBound) in numBins
// equal-width buckets of binWidth, labeled with unit in String().
func New( binWidth float64, numBins int, lowerBound, upperBound float64, unit string )( *Histogram ) {
    if numBins <= 0 {
        numBins = 1
    }

    return &Histogram {
        binWidth : binWidth,
        numBins  : numBins,
        lower    : lowerBound,
        upper    : upperBound,
        unit     : unit,
        bins     : make( [ ]int64, numBins ),
    }
}

// Insert folds one sample into the histogram at the given timestamp.
func ( h *Histogram )Insert( sample float64, now clock.Timestamp ) {
    h.mu.Lock( )
    defer h.mu.Unlock( )

    h.total++
    h.sum += sample
    h.lastUpdate = now

    idx := 0
    if h.binWidth > 0 {
        idx = int( ( sample - h.lower ) / h.binWidth )
    }
    if idx < 0 {
        idx = 0
    }
    if idx >= h.numBins {
        idx = h.numBins - 1
    }

    h.bins[ idx ]++
}

// Reset clears all accumulated samples, used at interval boundaries for
// histograms that are scoped to one reporting window.
func ( h *Histogram )Reset( ) {
    h.mu.Lock( )
    defer h.mu.Unlock( )

    for i := range h.bins {
        h.bins[ i ] = 0
    }
    h.total = 0
    h.sum   = 0
}

// percentileLocked returns the lower edge of the first bin at which the
// cumulative count reaches p fraction of all samples, i.e. roughly the
// value at or below which p of the samples fall, assuming callers
// already hold h.mu.
func ( h *Histogram )percentileLocked( p float64 )( float64 ) {
    if h.total == 0 {
        return 0
    }

    target := int64( p * float64( h.total ) )
    var cum int64
    for i, cnt := range h.bins {
        cum += cnt
        if cum >= target {
            return h.lower + float64( i ) * h.binWidth
        }
    }

    return h.upper
}

// String renders a one-line summary: sample count, mean, and the
// configured percentile cut points.
func ( h *Histogram )String( )( string ) {
    h.mu.Lock( )
    defer h.mu.Unlock( )

    mean := 0.0
    if h.total > 0 {
        mean = h.sum / float64( h.total )
    }

    var b strings.Builder
    fmt.Fprintf( &b, "cnt=%d mean=%.3f%s", h.total, mean, h.unit )

    for _, p := range Percentiles {
        fmt.Fprintf( &b, " p%02.0f=%.3f%s", p * 100, h.percentileLocked( p ), h.unit )
    }

    return b.String( )
}

// Count returns the number of samples inserted since the last Reset.
func ( h *Histogram )Count( )( int64 ) {
    h.mu.Lock( )
    defer h.mu.Unlock( )
    return h.total
}
