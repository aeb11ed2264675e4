package report

// StatisticsEmitter is the pluggable sink for reports the Reporter
// produces. Default stdout/CSV/file implementations live in
// internal/report/format; internal/report/promexport adds a Prometheus
// gauge sink. Any number of emitters may be registered on a Reporter.
type StatisticsEmitter interface {
    EmitInterval( info *TransferInfo )
    EmitSum( info *TransferInfo )
    EmitConnection( conn *ConnectionInfo )
    EmitSettings( data *ReporterData )
}
