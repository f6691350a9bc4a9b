package core

import "time"

const (
	AlertWarning  AlertType = "warning"
	AlertCritical AlertType = "critical"
	AlertCustom   AlertType = "custom"
)

const (
	ScheduleImmediate ScheduleType = "immediate"
	ScheduleScheduled ScheduleType = "scheduled"
)

const (
	RecurDays   RecurrenceUnit = "days"
	RecurWeeks  RecurrenceUnit = "weeks"
	RecurMonths RecurrenceUnit = "months"
)

type (
	AlertType      string
	ScheduleType   string
	RecurrenceUnit string

	// AlertSchedule is a persisted recurring alert. The external job
	// runner re-invokes the alert engine with the schedule's identity;
	// the engine re-checks the budget's utilization against Threshold
	// before re-sending.
	AlertSchedule struct {
		ID         int64
		BudgetID   int64
		Type       AlertType
		Threshold  float64
		CustomText string
		Recipients []Recipient
		ViaEmail   bool
		ViaChat    bool
		Interval   int
		Unit       RecurrenceUnit
		LastRunAt  time.Time
		Active     bool
		CreatedBy  int64
	}
)

// Due reports whether the schedule's cadence has elapsed since its last
// run. A schedule that has never run is due.
func (s AlertSchedule) Due(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastRunAt.IsZero() {
		return true
	}
	interval := s.Interval
	if interval < 1 {
		interval = 1
	}
	var next time.Time
	switch s.Unit {
	case RecurDays:
		next = s.LastRunAt.AddDate(0, 0, interval)
	case RecurWeeks:
		next = s.LastRunAt.AddDate(0, 0, 7*interval)
	case RecurMonths:
		next = s.LastRunAt.AddDate(0, interval, 0)
	default:
		next = s.LastRunAt.AddDate(0, 0, 7*interval)
	}
	return !now.Before(next)
}

func (u RecurrenceUnit) Valid() bool {
	switch u {
	case RecurDays, RecurWeeks, RecurMonths:
		return true
	}
	return false
}

func (t AlertType) Valid() bool {
	switch t {
	case AlertWarning, AlertCritical, AlertCustom:
		return true
	}
	return false
}
