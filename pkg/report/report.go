// Package report writes an end-of-cycle XLSX workbook with three sheets
// (Jobs, Waves, Outcomes), each holding a group of audit event kinds, an
// operator-facing artifact rather than a domain-data store.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/tangiraiC/passl-dispatch/pkg/audit"
)

const (
	sheetJobs     = "Jobs"
	sheetWaves    = "Waves"
	sheetOutcomes = "Outcomes"
)

var columnHeaders = []string{"Cycle", "Event", "Job", "Order", "Driver", "Wave", "Detail", "Occurred At"}

// WriteCycleReport builds a workbook from a cycle's audit events and
// saves it to path. Events are routed to a sheet by kind: JOB_CREATED and
// ORDER_SHATTERED go to Jobs, WAVE_BROADCAST/WAVE_REVOKED go to Waves,
// everything else (JOB_ACCEPTED, JOB_FAILED, ORDER_COMPENSATED) goes to
// Outcomes.
func WriteCycleReport(events []audit.Event, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), sheetJobs)
	f.NewSheet(sheetWaves)
	f.NewSheet(sheetOutcomes)

	rows := map[string]int{sheetJobs: 1, sheetWaves: 1, sheetOutcomes: 1}
	for _, sheet := range []string{sheetJobs, sheetWaves, sheetOutcomes} {
		writeHeader(f, sheet)
	}

	for _, e := range events {
		sheet := sheetFor(e.EventKind)
		rows[sheet]++
		writeEventRow(f, sheet, rows[sheet], e)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func sheetFor(kind audit.EventKind) string {
	switch kind {
	case audit.JobCreated, audit.OrderShattered:
		return sheetJobs
	case audit.WaveBroadcast, audit.WaveRevoked:
		return sheetWaves
	default:
		return sheetOutcomes
	}
}

func writeHeader(f *excelize.File, sheet string) {
	for i, h := range columnHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
}

func writeEventRow(f *excelize.File, sheet string, row int, e audit.Event) {
	values := []interface{}{
		e.CycleID, string(e.EventKind), e.JobID, e.OrderID, e.DriverID,
		e.Wave, e.Detail, e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, cell, v)
	}
}
