package clock

import "testing"

func TestAddCarry( t *testing.T ) {
    left  := Timestamp{ Sec: 1, Usec: 700000 }
    right := Timestamp{ Sec: 0, Usec: 500000 }

    sum := Add( left, right )
    if sum.Sec != 2 || sum.Usec != 200000 {
        t.Fatalf( "Add - expected {2 200000}, saw %+v", sum )
    }
}

func TestSub( t *testing.T ) {
    left  := Timestamp{ Sec: 10, Usec: 250000 }
    right := Timestamp{ Sec: 9, Usec: 750000 }

    diff := Sub( left, right )
    if diff != 0.5 {
        t.Fatalf( "Sub - expected 0.5, saw %v", diff )
    }
}

func TestZero( t *testing.T ) {
    if !( Timestamp{ } ).Zero( ) {
        t.Fatalf( "Zero - expected zero value to report Zero() true" )
    }

    if ( Timestamp{ Sec: 1 } ).Zero( ) {
        t.Fatalf( "Zero - expected non-zero value to report Zero() false" )
    }
}

func TestBefore( t *testing.T ) {
    a := Timestamp{ Sec: 1, Usec: 0 }
    b := Timestamp{ Sec: 1, Usec: 1 }

    if !a.Before( b ) {
        t.Fatalf( "Before - expected %+v before %+v", a, b )
    }

    if b.Before( a ) {
        t.Fatalf( "Before - did not expect %+v before %+v", b, a )
    }
}
