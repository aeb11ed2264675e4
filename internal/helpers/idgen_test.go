package helpers

import (
    "testing"
)

const idGenMagicNum = 32

func testNewIdGenerator( t *testing.T )( idGen *IdGen ) {
    idGen = NewIdGenerator( )
    if nil == idGen {
        t.Fatalf( "NewIdGenerator - failed to initialize" )
    }

    return idGen
}

func TestInitIdBlock( t *testing.T ) {
    idGen := testNewIdGenerator( t )
    err   := idGen.InitIdBlock( idGenMagicNum )
    if err != nil || !idGen.Initialized {
        t.Fatalf( "InitIdBlock - failed to initialize with count %v, error %v", idGenMagicNum, err )
    }

    if idGenMagicNum != idGen.Count {
        t.Fatalf( "InitIdBlock - count mismatch expected %v saw %v", idGenMagicNum, idGen.Count )
    }

    seen := make( map[ string ]bool, idGen.Count )
    for i := 0; i < idGenMagicNum; i++ {
        tok := idGen.TokenFor( i )
        if len( tok ) == 0 {
            t.Fatalf( "InitIdBlock - empty token at index %d", i )
        }
        if seen[ tok ] {
            t.Fatalf( "InitIdBlock - duplicate token %q", tok )
        }
        seen[ tok ] = true
    }
}

func TestInitIdBlockIsIdempotent( t *testing.T ) {
    idGen := testNewIdGenerator( t )
    if err := idGen.InitIdBlock( idGenMagicNum ); err != nil {
        t.Fatalf( "InitIdBlock: %v", err )
    }
    first := idGen.TokenFor( 0 )

    if err := idGen.InitIdBlock( idGenMagicNum * 2 ); err != nil {
        t.Fatalf( "InitIdBlock (second call): %v", err )
    }
    if idGen.Count != idGenMagicNum {
        t.Fatalf( "InitIdBlock - second call should not resize the block, count now %d", idGen.Count )
    }
    if idGen.TokenFor( 0 ) != first {
        t.Fatalf( "InitIdBlock - second call should not reallocate tokens" )
    }
}

func TestTokenForOutOfRange( t *testing.T ) {
    idGen := testNewIdGenerator( t )
    if tok := idGen.TokenFor( 0 ); tok != "" {
        t.Fatalf( "expected empty token before initialization, got %q", tok )
    }

    idGen.InitIdBlock( 4 )
    if tok := idGen.TokenFor( -1 ); tok != "" {
        t.Fatalf( "expected empty token for negative index, got %q", tok )
    }
    if tok := idGen.TokenFor( 4 ); tok != "" {
        t.Fatalf( "expected empty token past the block, got %q", tok )
    }
}
