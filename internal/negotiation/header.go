// Package negotiation implements the fixed-layout, big-endian
// test-negotiation header a client writes to a listener's data socket on
// its first write: a base block followed by an optional extended block
// and, for UDP, a small isoch/L2-check trailer.
package negotiation

import (
    "bytes"
    "encoding/binary"
    "fmt"
)

// Base flags bitmask.
const (
    FlagExtend   uint32 = 0x0001
    FlagVersion1 uint32 = 0x0002
    FlagUDPTests uint32 = 0x0004
    FlagSeqNo64B uint32 = 0x0008
    FlagRunNow   uint32 = 0x0010
)

// Extended flags bitmask.
const (
    ExtendReverse   uint32 = 0x0001
    ExtendBidir     uint32 = 0x0002
    ExtendUnitsPPS  uint32 = 0x0004
)

// UDP trailer testflags bitmask.
const (
    UDPTestL2LenCheck  uint16 = 0x0001
    UDPTestL2EthPIPv6  uint16 = 0x0002
    UDPTestIsoch       uint16 = 0x0004
)

// TypeClientHdr is the only defined value of extend.typelen's type field.
const TypeClientHdr uint32 = 0x1

// baseLen/extendLen/udpLen are the wire sizes in bytes of each block.
const (
    baseLen   = 4*6
    extendLen = 8 + 4 + 4 + 4 + 4 + 4
    udpLen    = 2 + 2 + 4 + 4
)

// Extend is the optional extended block (present unless the peer sent
// bare VERSION1 with no EXTEND bit).
type Extend struct {
    Type      uint32
    Length    uint32
    Flags     uint32
    VersionU  uint32
    VersionL  uint32
    Rate      uint32
    Reserved  uint32
}

// UDPTrailer carries isochronous/L2-check negotiation, sent only when
// FlagUDPTests is set.
type UDPTrailer struct {
    TestFlags  uint16
    TLVOffset  uint16
    VersionU   uint32
    VersionL   uint32
}

// Header is the decoded form of the full negotiation record. Extend and
// UDP are nil when the corresponding block was absent on the wire.
type Header struct {
    Flags        uint32
    NumThreads   uint32
    Port         uint32
    BufferLen    uint32
    WindowSize   uint32
    Amount       uint32

    Extend *Extend
    UDP    *UDPTrailer
}

// TimeMode reports whether Amount encodes a duration (high bit set) as
// opposed to a byte count.
func ( h *Header )TimeMode( )( bool ) {
    return h.Amount & 0x80000000 != 0
}

// Seconds decodes a time-mode Amount into seconds. Only meaningful when
// TimeMode() is true.
func ( h *Header )Seconds( )( float64 ) {
    signed := int32( h.Amount )
    return float64( -signed ) / 100.0
}

// Bytes decodes a byte-mode Amount. Only meaningful when TimeMode() is
// false.
func ( h *Header )Bytes( )( uint32 ) {
    return h.Amount
}

// EncodeAmountTime negates seconds*100 into the two's-complement 32-bit
// field with the high bit set.
func EncodeAmountTime( seconds float64 )( uint32 ) {
    return uint32( int32( -( seconds * 100 ) ) ) | 0x80000000
}

// EncodeAmountBytes returns byteCount with the high bit cleared; byte
// mode never sets the high bit.
func EncodeAmountBytes( byteCount uint32 )( uint32 ) {
    return byteCount &^ 0x80000000
}

// Encode serializes h to its on-wire big-endian form. The extended block
// is written iff h.Extend is non-nil; the UDP trailer iff h.UDP is
// non-nil and FlagUDPTests is set.
func ( h *Header )Encode( )( [ ]byte, error ) {
    buf := &bytes.Buffer{ }

    fields := [ ]uint32{ h.Flags, h.NumThreads, h.Port, h.BufferLen, h.WindowSize, h.Amount }
    for _, f := range fields {
        if err := binary.Write( buf, binary.BigEndian, f ); err != nil {
            return nil, fmt.Errorf( "negotiation: encode base: %w", err )
        }
    }

    if h.Extend != nil {
        typelen := uint64( h.Extend.Type )<<32 | uint64( h.Extend.Length )
        vals := [ ]interface{ }{ typelen, h.Extend.Flags, h.Extend.VersionU, h.Extend.VersionL, h.Extend.Rate, h.Extend.Reserved }
        for _, v := range vals {
            if err := binary.Write( buf, binary.BigEndian, v ); err != nil {
                return nil, fmt.Errorf( "negotiation: encode extend: %w", err )
            }
        }
    }

    if h.UDP != nil && h.Flags & FlagUDPTests != 0 {
        vals := [ ]interface{ }{ h.UDP.TestFlags, h.UDP.TLVOffset, h.UDP.VersionU, h.UDP.VersionL }
        for _, v := range vals {
            if err := binary.Write( buf, binary.BigEndian, v ); err != nil {
                return nil, fmt.Errorf( "negotiation: encode udp trailer: %w", err )
            }
        }
    }

    return buf.Bytes( ), nil
}

// Decode parses raw into a Header. If flags == 0 the peer predates
// negotiation and Decode returns only the decoded base fields with no
// error (compatibility mode, no reply expected); if only VERSION1 is set
// with no EXTEND bit the extended block is absent.
func Decode( raw [ ]byte )( *Header, error ) {
    if len( raw ) < baseLen {
        return nil, fmt.Errorf( "negotiation: short header: %d bytes", len( raw ) )
    }

    r := bytes.NewReader( raw )
    h := &Header{ }

    base := [ ]*uint32{ &h.Flags, &h.NumThreads, &h.Port, &h.BufferLen, &h.WindowSize, &h.Amount }
    for _, f := range base {
        if err := binary.Read( r, binary.BigEndian, f ); err != nil {
            return nil, fmt.Errorf( "negotiation: decode base: %w", err )
        }
    }

    if h.Flags == 0 {
        return h, nil
    }

    if h.Flags & FlagExtend == 0 {
        return h, nil
    }

    var typelen uint64
    ext := &Extend{ }
    fields := [ ]interface{ }{ &typelen, &ext.Flags, &ext.VersionU, &ext.VersionL, &ext.Rate, &ext.Reserved }
    for _, f := range fields {
        if err := binary.Read( r, binary.BigEndian, f ); err != nil {
            return nil, fmt.Errorf( "negotiation: decode extend: %w", err )
        }
    }
    ext.Type = uint32( typelen >> 32 )
    ext.Length = uint32( typelen )
    h.Extend = ext

    if h.Flags & FlagUDPTests != 0 {
        udp := &UDPTrailer{ }
        udpFields := [ ]interface{ }{ &udp.TestFlags, &udp.TLVOffset, &udp.VersionU, &udp.VersionL }
        for _, f := range udpFields {
            if err := binary.Read( r, binary.BigEndian, f ); err != nil {
                return nil, fmt.Errorf( "negotiation: decode udp trailer: %w", err )
            }
        }
        h.UDP = udp
    }

    return h, nil
}

// Mode is the negotiated sub-test dispatch resolved from a decoded
// Header's flags: BIDIR beats REVERSE; RUN_NOW (or its absence under
// bare VERSION1) chooses DualTest vs TradeOff.
type Mode int

const (
    ModeCompat Mode = iota
    ModeNormal
    ModeReverse
    ModeBidir
    ModeDualTest
    ModeTradeOff
)

// ResolveMode resolves the negotiated mode: unknown extend bits are
// ignored (only REVERSE/BIDIR are inspected); a flags==0 header
// resolves to ModeCompat.
func ( h *Header )ResolveMode( )( Mode ) {
    if h.Flags == 0 {
        return ModeCompat
    }

    if h.Extend != nil {
        if h.Extend.Flags & ExtendBidir != 0 {
            return ModeBidir
        }
        if h.Extend.Flags & ExtendReverse != 0 {
            return ModeReverse
        }
    }

    if h.Flags & FlagVersion1 != 0 {
        if h.Flags & FlagRunNow != 0 {
            return ModeDualTest
        }
        return ModeTradeOff
    }

    return ModeNormal
}
