package model

import (
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ScheduleConfig drives the recurrence scheduler. Weekdays is only
// meaningful for weekly schedules, DayOfMonth only for monthly ones;
// a DayOfMonth beyond a short month is clamped to that month's last day.
type ScheduleConfig struct {
	Frequency  Frequency      `json:"frequency" binding:"required,oneof=daily weekly monthly"`
	Hour       int            `json:"hour" binding:"min=0,max=23"`
	Minute     int            `json:"minute" binding:"min=0,max=59"`
	Weekdays   []time.Weekday `json:"weekdays,omitempty"`
	DayOfMonth int            `json:"day_of_month,omitempty"`
}

func (c ScheduleConfig) Validate() error {
	switch c.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if len(c.Weekdays) == 0 {
			return fmt.Errorf("weekly schedule requires at least one weekday")
		}
		for _, d := range c.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("invalid weekday: %d", d)
			}
		}
	case FrequencyMonthly:
		if c.DayOfMonth < 1 || c.DayOfMonth > 31 {
			return fmt.Errorf("day of month must be between 1 and 31, got %d", c.DayOfMonth)
		}
	default:
		return fmt.Errorf("invalid frequency: %q", c.Frequency)
	}

	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("hour must be between 0 and 23, got %d", c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("minute must be between 0 and 59, got %d", c.Minute)
	}
	return nil
}

// WeekdaySet returns the configured weekdays as a lookup set.
func (c ScheduleConfig) WeekdaySet() map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(c.Weekdays))
	for _, d := range c.Weekdays {
		set[d] = true
	}
	return set
}
