package stats

import (
    "math"
)

// UpdateTransit folds one observed one-way transit time (seconds) into
// both the window and cumulative accumulators using Welford's online
// algorithm: a single m2 = sum((x-mean)^2) is maintained and variance is
// derived as m2/(n-1), avoiding a second parallel accumulator.
func ( t *TransitStats )UpdateTransit( sample float64 ) {
    t.Cnt++
    delta := sample - t.Mean
    t.Mean += delta / float64( t.Cnt )
    t.M2   += delta * ( sample - t.Mean )
    t.Sum  += sample
    t.Last  = sample

    if t.Cnt == 1 || sample < t.Min {
        t.Min = sample
    }
    if t.Cnt == 1 || sample > t.Max {
        t.Max = sample
    }

    t.TotCnt++
    totDelta := sample - t.TotMean
    t.TotMean += totDelta / float64( t.TotCnt )
    t.TotM2   += totDelta * ( sample - t.TotMean )
    t.TotSum  += sample

    if t.TotCnt == 1 || sample < t.TotMin {
        t.TotMin = sample
    }
    if t.TotCnt == 1 || sample > t.TotMax {
        t.TotMax = sample
    }
}

// Variance returns the window variance, zero for fewer than 2 samples.
func ( t *TransitStats )Variance( )( float64 ) {
    if t.Cnt < 2 {
        return 0
    }
    return t.M2 / float64( t.Cnt - 1 )
}

// StdDev returns the window standard deviation.
func ( t *TransitStats )StdDev( )( float64 ) {
    return math.Sqrt( t.Variance( ) )
}

// TotVariance returns the cumulative variance.
func ( t *TransitStats )TotVariance( )( float64 ) {
    if t.TotCnt < 2 {
        return 0
    }
    return t.TotM2 / float64( t.TotCnt - 1 )
}

// ResetWindow clears the current-interval view, rolling nothing forward -
// the cumulative fields are independent accumulators.
func ( t *TransitStats )ResetWindow( ) {
    t.Max, t.Min, t.Sum, t.Last, t.Mean, t.M2 = 0, 0, 0, 0, 0, 0
    t.Cnt = 0
}

// RecordRead bumps the read-call counters, and bins the read size into
// the BinCount-wide histogram addressed by size/BinSize.
func ( r *ReadStats )RecordRead( size int ) {
    r.CntRead++
    r.TotCntRead++

    if r.BinSize <= 0 {
        return
    }

    bin := size / r.BinSize
    if bin >= BinCount {
        bin = BinCount - 1
    }
    if bin < 0 {
        bin = 0
    }

    r.Bins[ bin ]++
    r.TotBins[ bin ]++
}

// ResetWindow clears the interval view of ReadStats.
func ( r *ReadStats )ResetWindow( ) {
    r.CntRead = 0
    for i := range r.Bins {
        r.Bins[ i ] = 0
    }
}

// RecordWrite bumps the write counters; ok distinguishes a successful
// write from one that was accounted as an error.
func ( w *WriteStats )RecordWrite( ok bool ) {
    w.WriteCnt++
    w.TotWriteCnt++
    if !ok {
        w.WriteErr++
        w.TotWriteErr++
    }
}

// RecordRetransmit folds in a TCP retransmit count observed via the
// socket's TCP_INFO-style accounting.
func ( w *WriteStats )RecordRetransmit( totalRetries int ) {
    delta := totalRetries - w.LastTCPRetry
    if delta < 0 {
        delta = 0
    }
    w.TCPRetry += delta
    w.TotTCPRetry += delta
    w.LastTCPRetry = totalRetries
}

// ResetWindow clears the interval view of WriteStats, carrying the
// retransmit baseline forward so the next interval's delta is correct.
func ( w *WriteStats )ResetWindow( ) {
    w.WriteCnt = 0
    w.WriteErr = 0
    w.TCPRetry = 0
}

// RecordL2 folds in one L2 validation outcome described by a bitmask of
// L2Unknown/L2LengthErr/L2ChecksumErr.
const (
    L2Unknown    = 0x01
    L2LengthErr  = 0x02
    L2ChecksumErr = 0x04
)

func ( l *L2Stats )RecordL2( flags int ) {
    l.Cnt++
    l.TotCnt++

    if flags & L2Unknown != 0 {
        l.Unknown++
        l.TotUnknown++
    }
    if flags & L2LengthErr != 0 {
        l.LengthErr++
        l.TotLengthErr++
    }
    if flags & L2ChecksumErr != 0 {
        l.UDPChecksumErr++
        l.TotUDPChecksumErr++
    }
}

// ResetWindow clears the interval view of L2Stats.
func ( l *L2Stats )ResetWindow( ) {
    l.Cnt, l.Unknown, l.UDPChecksumErr, l.LengthErr = 0, 0, 0, 0
}

// RecordFrame folds in one isochronous frame boundary: lost counts frames
// that never arrived before the next burst began.
func ( i *IsochStats )RecordFrame( lost int64 ) {
    i.FrameCnt++
    if lost > 0 {
        i.FrameLostCnt += lost
        i.SlipCnt++
    }
}

// ResetWindow clears the interval view of IsochStats.
func ( i *IsochStats )ResetWindow( ) {
    i.FrameCnt, i.FrameLostCnt, i.SlipCnt = 0, 0, 0
}
