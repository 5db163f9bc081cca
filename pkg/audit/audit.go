// Package audit appends dispatch-relevant events to a SQLite-backed,
// append-only table (§6.5). It is an event log, not a restart point for
// Order/Job/Driver state: the queue, the batching engine, and the
// dispatcher never read from it.
package audit

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// EventKind enumerates the dispatch-relevant transitions the audit table
// can hold. Comparisons against these constants, never raw strings.
// cycle.Runner records JobCreated, JobAccepted and JobFailed; nothing in
// this module records the other kinds.
type EventKind string

const (
	JobCreated       EventKind = "JOB_CREATED"
	WaveBroadcast    EventKind = "WAVE_BROADCAST"
	WaveRevoked      EventKind = "WAVE_REVOKED"
	JobAccepted      EventKind = "JOB_ACCEPTED"
	JobFailed        EventKind = "JOB_FAILED"
	OrderShattered   EventKind = "ORDER_SHATTERED"
	OrderCompensated EventKind = "ORDER_COMPENSATED"
)

// Event is one row of the audit table.
type Event struct {
	gorm.Model
	CycleID    string    `gorm:"index"`
	EventKind  EventKind `gorm:"index"`
	JobID      string    `gorm:"index"`
	OrderID    string    `gorm:"index"`
	DriverID   string    `gorm:"index"`
	Wave       int
	Detail     string
	OccurredAt time.Time `gorm:"index"`
}

// Log wraps a gorm connection dedicated to the audit table.
type Log struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a SQLite-backed audit log at dsn
// and migrates its schema.
func Open(dsn string) (*Log, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends one event. occurredAt is supplied by the caller (via
// pkg/clock) rather than read from wall-clock time here, so the audit
// trail stays consistent with the rest of a simulated run.
func (l *Log) Record(cycleID string, kind EventKind, jobID, orderID, driverID string, wave int, detail string, occurredAt time.Time) error {
	event := Event{
		CycleID:    cycleID,
		EventKind:  kind,
		JobID:      jobID,
		OrderID:    orderID,
		DriverID:   driverID,
		Wave:       wave,
		Detail:     detail,
		OccurredAt: occurredAt,
	}
	if err := l.db.Create(&event).Error; err != nil {
		return fmt.Errorf("audit: record %s: %w", kind, err)
	}
	return nil
}

// ForCycle returns every event recorded for a given cycle, ordered by
// occurrence.
func (l *Log) ForCycle(cycleID string) ([]Event, error) {
	var events []Event
	if err := l.db.Where("cycle_id = ?", cycleID).Order("occurred_at asc").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("audit: query cycle %s: %w", cycleID, err)
	}
	return events, nil
}

// Recent returns the last n events across all cycles, most recent first.
// This is the feed the terminal dashboard tails.
func (l *Log) Recent(n int) ([]Event, error) {
	var events []Event
	if err := l.db.Order("occurred_at desc").Limit(n).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	return events, nil
}

// Close releases the underlying database connection.
func (l *Log) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
