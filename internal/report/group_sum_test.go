package report

import (
    "testing"

    "github.com/camelinx/netperfd/internal/clock"
)

// TestAccumulateIntervalIndependentOfBarrier guards against
// accumulateInterval sharing its contributor count with BarrierClient's
// start-barrier counter: BarrierClient never resets arrived once every
// flow has crossed it, so reusing that field here would let the very
// first accumulateInterval call race past Threads on its own.
func TestAccumulateIntervalIndependentOfBarrier( t *testing.T ) {
    m := NewMultiHeader( 2 )

    done := make( chan struct{ } )
    go func( ) {
        m.BarrierClient( clock.Now( ) )
        close( done )
    }( )
    m.BarrierClient( clock.Now( ) )
    <-done

    ready, _ := m.accumulateInterval( &TransferInfo{ TotalLen: 10 } )
    if ready {
        t.Fatalf( "expected accumulateInterval to wait for both flows' contributions" )
    }

    ready, sum := m.accumulateInterval( &TransferInfo{ TotalLen: 20 } )
    if !ready {
        t.Fatalf( "expected accumulateInterval ready once both flows contributed" )
    }
    if sum.TotalLen != 30 {
        t.Fatalf( "TotalLen - expected 30, saw %v", sum.TotalLen )
    }

    ready, _ = m.accumulateInterval( &TransferInfo{ TotalLen: 1 } )
    if ready {
        t.Fatalf( "expected the next round to again wait for both flows, not fire after one" )
    }
}
