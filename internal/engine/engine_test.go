package engine

import (
    "testing"
)

func TestNewSettingsDefaults( t *testing.T ) {
    s := NewSettings( )

    if s.Transport != TransportTCP {
        t.Fatalf( "expected default transport TCP, got %v", s.Transport )
    }
    if s.Port != 5001 {
        t.Fatalf( "expected default port 5001, got %d", s.Port )
    }
    if s.Threads != 1 {
        t.Fatalf( "expected default thread count 1, got %d", s.Threads )
    }
    if s.BufLen != 128*1024 {
        t.Fatalf( "expected default TCP buffer 128KiB, got %d", s.BufLen )
    }
}

func TestInterruptedIsCooperative( t *testing.T ) {
    s := NewSettings( )

    if s.Interrupted( ) {
        t.Fatalf( "expected not interrupted initially" )
    }

    s.SetInterrupted( )
    if !s.Interrupted( ) {
        t.Fatalf( "expected interrupted after SetInterrupted" )
    }
    if !*s.InterruptedPtr( ) {
        t.Fatalf( "expected InterruptedPtr to observe the same flag" )
    }
}

func TestBuildNegotiationHeaderReverseBeatsTradeOff( t *testing.T ) {
    s := NewSettings( )
    s.Reverse = true
    s.TradeOff = true

    h := buildNegotiationHeader( s )
    if h.Extend.Flags & 0x0001 == 0 {
        t.Fatalf( "expected the reverse extend bit set" )
    }
}

func TestBuildNegotiationHeaderUDPSetsTrailer( t *testing.T ) {
    s := NewSettings( )
    s.Transport = TransportUDP

    h := buildNegotiationHeader( s )
    if h.UDP == nil {
        t.Fatalf( "expected a UDP trailer for a UDP transport" )
    }
}

func TestRateLimiterNilWhenNoOfferedRate( t *testing.T ) {
    s := NewSettings( )
    s.OfferedRate = 0

    if rateLimiter( s ) != nil {
        t.Fatalf( "expected a nil limiter when no rate is offered" )
    }
}

func TestRateLimiterPPSUsesBufferSizedUnits( t *testing.T ) {
    s := NewSettings( )
    s.OfferedRate = 100
    s.OfferedRatePPS = true
    s.BufLen = 1470

    l := rateLimiter( s )
    if l == nil {
        t.Fatalf( "expected a non-nil limiter" )
    }
    if l.Limit( ) != 100*1470 {
        t.Fatalf( "expected limit %d, got %v", 100*1470, l.Limit( ) )
    }
}
