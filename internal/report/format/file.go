package format

import (
    "os"

    "github.com/camelinx/netperfd/internal/report"
)

// fileEmitter holds the *os.File backing either a TextEmitter or a
// CSVEmitter (the -o output-file CLI option). It has no Close method; the
// file stays open for the life of the process.
type fileEmitter struct {
    file  *os.File
    inner report.StatisticsEmitter
}

// NewFileEmitter opens path for the -o output flag and wraps it with a
// CSVEmitter or TextEmitter depending on csvFormat.
func NewFileEmitter( path string, csvFormat bool )( report.StatisticsEmitter, error ) {
    f, err := os.Create( path )
    if err != nil {
        return nil, err
    }

    fe := &fileEmitter{ file: f }
    if csvFormat {
        fe.inner = NewCSVEmitter( f )
    } else {
        fe.inner = NewTextEmitter( f, false )
    }
    return fe, nil
}

func ( fe *fileEmitter )EmitInterval( info *report.TransferInfo )        { fe.inner.EmitInterval( info ) }
func ( fe *fileEmitter )EmitSum( info *report.TransferInfo )             { fe.inner.EmitSum( info ) }
func ( fe *fileEmitter )EmitConnection( conn *report.ConnectionInfo )    { fe.inner.EmitConnection( conn ) }
func ( fe *fileEmitter )EmitSettings( data *report.ReporterData )        { fe.inner.EmitSettings( data ) }
