package format

import (
    "encoding/csv"
    "io"
    "strconv"
    "sync"

    "github.com/golang/glog"

    "github.com/camelinx/netperfd/internal/report"
)

// CSVEmitter writes one row per interval/sum in the column order
// transferID,groupID,start,end,bytes,bitsPerSec,datagrams,errors,jitterMs;
// the last three are written on every row, TCP included. A header row is
// written once, on first use.
type CSVEmitter struct {
    mu          sync.Mutex
    w           *csv.Writer
    wroteHeader bool
}

func NewCSVEmitter( w io.Writer )( *CSVEmitter ) {
    return &CSVEmitter{ w: csv.NewWriter( w ) }
}

func ( e *CSVEmitter )header( ) {
    if e.wroteHeader {
        return
    }
    e.wroteHeader = true

    if err := e.w.Write( [ ]string{
        "transfer_id", "group_id", "interval_start", "interval_end",
        "bytes", "bits_per_second", "datagrams", "errors", "jitter_ms",
    } ); err != nil {
        glog.Errorf( "format: csv header: %v", err )
    }
}

func ( e *CSVEmitter )writeRow( info *report.TransferInfo ) {
    e.header( )

    bitsPerSec := 0.0
    if span := info.IntervalEnd - info.IntervalStart; span > 0 {
        bitsPerSec = float64( info.TotalLen ) * 8 / span
    }

    row := [ ]string{
        strconv.Itoa( info.TransferID ),
        strconv.Itoa( info.GroupID ),
        strconv.FormatFloat( info.IntervalStart, 'f', 3, 64 ),
        strconv.FormatFloat( info.IntervalEnd, 'f', 3, 64 ),
        strconv.FormatUint( info.TotalLen, 10 ),
        strconv.FormatFloat( bitsPerSec, 'f', 0, 64 ),
        strconv.FormatInt( info.CntDatagrams, 10 ),
        strconv.FormatInt( info.CntError, 10 ),
        strconv.FormatFloat( info.Jitter * 1000, 'f', 3, 64 ),
    }

    if err := e.w.Write( row ); err != nil {
        glog.Errorf( "format: csv row: %v", err )
        return
    }
    e.w.Flush( )
}

func ( e *CSVEmitter )EmitInterval( info *report.TransferInfo ) {
    e.mu.Lock( )
    defer e.mu.Unlock( )
    e.writeRow( info )
}

func ( e *CSVEmitter )EmitSum( info *report.TransferInfo ) {
    e.mu.Lock( )
    defer e.mu.Unlock( )
    e.writeRow( info )
}

func ( e *CSVEmitter )EmitConnection( conn *report.ConnectionInfo )     { }
func ( e *CSVEmitter )EmitSettings( data *report.ReporterData )         { }
