package stats

import (
    "math"
    "testing"
)

func batchVariance( samples [ ]float64 )( float64 ) {
    n := float64( len( samples ) )
    if n < 2 {
        return 0
    }

    mean := 0.0
    for _, s := range samples {
        mean += s
    }
    mean /= n

    sq := 0.0
    for _, s := range samples {
        sq += ( s - mean ) * ( s - mean )
    }

    return sq / ( n - 1 )
}

func TestTransitStatsWelfordMatchesBatch( t *testing.T ) {
    samples := [ ]float64{ 0.010, 0.012, 0.009, 0.015, 0.011, 0.020, 0.008, 0.013 }

    var transit TransitStats
    for _, s := range samples {
        transit.UpdateTransit( s )
    }

    want := batchVariance( samples )
    got  := transit.Variance( )

    tol := math.Abs( want ) * float64( len( samples ) ) * 1e-9
    if tol == 0 {
        tol = 1e-12
    }

    if math.Abs( got - want ) > tol {
        t.Fatalf( "Variance - expected %v within %v, saw %v", want, tol, got )
    }

    if transit.Cnt != len( samples ) {
        t.Fatalf( "Cnt - expected %v, saw %v", len( samples ), transit.Cnt )
    }
}

func TestTransitStatsMinMax( t *testing.T ) {
    var transit TransitStats
    for _, s := range [ ]float64{ 0.5, 0.1, 0.9, 0.3 } {
        transit.UpdateTransit( s )
    }

    if transit.Min != 0.1 {
        t.Fatalf( "Min - expected 0.1, saw %v", transit.Min )
    }
    if transit.Max != 0.9 {
        t.Fatalf( "Max - expected 0.9, saw %v", transit.Max )
    }
}

func TestReadStatsBinning( t *testing.T ) {
    r := ReadStats{ BinSize: 100 }
    r.RecordRead( 0 )
    r.RecordRead( 150 )
    r.RecordRead( 10000 )

    if r.Bins[ 0 ] != 1 {
        t.Fatalf( "Bins[0] - expected 1, saw %v", r.Bins[ 0 ] )
    }
    if r.Bins[ 1 ] != 1 {
        t.Fatalf( "Bins[1] - expected 1, saw %v", r.Bins[ 1 ] )
    }
    if r.Bins[ BinCount - 1 ] != 1 {
        t.Fatalf( "Bins[last] - expected overflow sample clamped into last bin" )
    }
    if r.CntRead != 3 || r.TotCntRead != 3 {
        t.Fatalf( "CntRead/TotCntRead - expected 3/3, saw %v/%v", r.CntRead, r.TotCntRead )
    }

    r.ResetWindow( )
    if r.CntRead != 0 || r.TotCntRead != 3 {
        t.Fatalf( "ResetWindow - expected window cleared, cumulative kept" )
    }
}

func TestWriteStatsRetransmitBaseline( t *testing.T ) {
    var w WriteStats
    w.RecordRetransmit( 5 )
    w.RecordRetransmit( 9 )

    if w.TCPRetry != 9 || w.TotTCPRetry != 9 {
        t.Fatalf( "TCPRetry - expected 9/9, saw %v/%v", w.TCPRetry, w.TotTCPRetry )
    }

    w.ResetWindow( )
    w.RecordRetransmit( 12 )
    if w.TCPRetry != 3 {
        t.Fatalf( "TCPRetry - expected delta of 3 against retained baseline, saw %v", w.TCPRetry )
    }
}

func TestL2StatsRecordsEachFlag( t *testing.T ) {
    var l L2Stats
    l.RecordL2( L2Unknown | L2LengthErr )
    l.RecordL2( L2ChecksumErr )

    if l.Cnt != 2 || l.Unknown != 1 || l.LengthErr != 1 || l.UDPChecksumErr != 1 {
        t.Fatalf( "RecordL2 - unexpected counters %+v", l )
    }
}

func TestIsochStatsRecordFrame( t *testing.T ) {
    var i IsochStats
    i.RecordFrame( 0 )
    i.RecordFrame( 2 )

    if i.FrameCnt != 2 || i.FrameLostCnt != 2 || i.SlipCnt != 1 {
        t.Fatalf( "RecordFrame - unexpected counters %+v", i )
    }
}
