package negotiation

import "testing"

func testFullHeader( t *testing.T )( *Header ) {
    t.Helper( )

    return &Header{
        Flags      : FlagExtend | FlagVersion1 | FlagUDPTests | FlagSeqNo64B | FlagRunNow,
        NumThreads : 4,
        Port       : 5001,
        BufferLen  : 1470,
        WindowSize : 65536,
        Amount     : EncodeAmountTime( 3.0 ),
        Extend     : &Extend{
            Type     : TypeClientHdr,
            Length   : extendLen,
            Flags    : ExtendReverse,
            VersionU : 2,
            VersionL : 9,
            Rate     : 1048576,
            Reserved : 0,
        },
        UDP : &UDPTrailer{
            TestFlags : UDPTestL2LenCheck | UDPTestIsoch,
            TLVOffset : 0,
            VersionU  : 2,
            VersionL  : 9,
        },
    }
}

func TestEncodeDecodeRoundTrip( t *testing.T ) {
    want := testFullHeader( t )

    raw, err := want.Encode( )
    if err != nil {
        t.Fatalf( "Encode: %v", err )
    }

    got, err := Decode( raw )
    if err != nil {
        t.Fatalf( "Decode: %v", err )
    }

    if got.Flags != want.Flags || got.NumThreads != want.NumThreads || got.Port != want.Port ||
        got.BufferLen != want.BufferLen || got.WindowSize != want.WindowSize || got.Amount != want.Amount {
        t.Fatalf( "base fields mismatch: got %+v want %+v", got, want )
    }

    if got.Extend == nil || *got.Extend != *want.Extend {
        t.Fatalf( "extend mismatch: got %+v want %+v", got.Extend, want.Extend )
    }

    if got.UDP == nil || *got.UDP != *want.UDP {
        t.Fatalf( "udp trailer mismatch: got %+v want %+v", got.UDP, want.UDP )
    }
}

func TestAmountEncodingTimeMode( t *testing.T ) {
    encoded := EncodeAmountTime( 3.0 )
    h := &Header{ Amount: encoded }

    if !h.TimeMode( ) {
        t.Fatalf( "expected time mode set" )
    }

    if got := h.Seconds( ); got != 3.0 {
        t.Fatalf( "Seconds() = %v, want 3.0", got )
    }
}

func TestAmountEncodingByteMode( t *testing.T ) {
    h := &Header{ Amount: EncodeAmountBytes( 20000000 ) }

    if h.TimeMode( ) {
        t.Fatalf( "expected byte mode" )
    }

    if got := h.Bytes( ); got != 20000000 {
        t.Fatalf( "Bytes() = %v, want 20000000", got )
    }
}

func TestFlagsZeroIsCompatibilityMode( t *testing.T ) {
    got, err := Decode( make( [ ]byte, baseLen ) )
    if err != nil {
        t.Fatalf( "Decode: %v", err )
    }

    if got.Flags != 0 || got.Extend != nil {
        t.Fatalf( "expected zero-flags compatibility header, got %+v", got )
    }

    if got.ResolveMode( ) != ModeCompat {
        t.Fatalf( "expected ModeCompat" )
    }
}

func TestVersion1WithoutExtendHasNoExtendedBlock( t *testing.T ) {
    h := &Header{ Flags: FlagVersion1, NumThreads: 1, Port: 5001 }

    raw, err := h.Encode( )
    if err != nil {
        t.Fatalf( "Encode: %v", err )
    }

    got, err := Decode( raw )
    if err != nil {
        t.Fatalf( "Decode: %v", err )
    }

    if got.Extend != nil {
        t.Fatalf( "expected no extended block, got %+v", got.Extend )
    }
}

func TestResolveModeBidirBeatsReverse( t *testing.T ) {
    h := &Header{
        Flags  : FlagExtend | FlagVersion1,
        Extend : &Extend{ Flags: ExtendBidir | ExtendReverse },
    }

    if got := h.ResolveMode( ); got != ModeBidir {
        t.Fatalf( "ResolveMode() = %v, want ModeBidir", got )
    }
}

func TestResolveModeRunNowSelectsDualTest( t *testing.T ) {
    h := &Header{ Flags: FlagVersion1 | FlagRunNow }

    if got := h.ResolveMode( ); got != ModeDualTest {
        t.Fatalf( "ResolveMode() = %v, want ModeDualTest", got )
    }
}

func TestResolveModeNoRunNowSelectsTradeOff( t *testing.T ) {
    h := &Header{ Flags: FlagVersion1 }

    if got := h.ResolveMode( ); got != ModeTradeOff {
        t.Fatalf( "ResolveMode() = %v, want ModeTradeOff", got )
    }
}

func TestUnknownReservedBitsSurviveRoundTrip( t *testing.T ) {
    h := &Header{
        Flags      : FlagExtend | FlagVersion1 | ( 1 << 30 ),
        NumThreads : 1,
        Extend     : &Extend{ Type: TypeClientHdr, Length: extendLen, Flags: ( 1 << 20 ) },
    }

    raw, err := h.Encode( )
    if err != nil {
        t.Fatalf( "Encode: %v", err )
    }

    got, err := Decode( raw )
    if err != nil {
        t.Fatalf( "Decode: %v", err )
    }

    if got.Flags & ( 1 << 30 ) == 0 {
        t.Fatalf( "unknown reserved flag bit lost across round-trip" )
    }

    if got.Extend.Flags & ( 1 << 20 ) == 0 {
        t.Fatalf( "unknown reserved extend flag bit lost across round-trip" )
    }
}
