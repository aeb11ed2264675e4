package report

// accumulateInterval folds one flow's interval TransferInfo into the
// group's shared aggregate. It reports ready=true, along with a copy of
// the summed TransferInfo, once every one of Threads flows has
// contributed for the current round - that row is the SUM line across
// all parallel flows, and is only ever returned after every member's own
// interval row has already been emitted by the caller.
func ( m *MultiHeader )accumulateInterval( info *TransferInfo )( ready bool, sum TransferInfo ) {
    m.mu.Lock( )
    defer m.mu.Unlock( )

    m.Data.TotalLen += info.TotalLen
    m.Data.CntError += info.CntError
    m.Data.CntOutOfOrder += info.CntOutOfOrder
    m.Data.CntDatagrams += info.CntDatagrams
    m.Data.IntervalStart = info.IntervalStart
    m.Data.IntervalEnd = info.IntervalEnd

    m.sumArrived++
    if m.sumArrived < m.Threads {
        return false, TransferInfo{ }
    }

    sum = m.Data
    sum.GroupID = m.GroupID
    sum.TransferID = 0

    m.Data = TransferInfo{ }
    m.sumArrived = 0

    return true, sum
}

// accumulateFinal folds one flow's final TransferInfo into the group's
// aggregate and reports whether every flow has now finished - the trigger
// for the group's closing SUM row and the MultiHeader's release.
func ( m *MultiHeader )accumulateFinal( info *TransferInfo )( ready bool, sum TransferInfo ) {
    m.mu.Lock( )
    defer m.mu.Unlock( )

    m.Report.Info.TotalLen += info.TotalLen
    m.Report.Info.CntError += info.CntError
    m.Report.Info.CntOutOfOrder += info.CntOutOfOrder
    m.Report.Info.CntDatagrams += info.CntDatagrams

    m.doneCount++
    if m.doneCount < m.Threads {
        return false, TransferInfo{ }
    }

    sum = m.Report.Info
    sum.GroupID = m.GroupID
    sum.TransferID = 0

    return true, sum
}
