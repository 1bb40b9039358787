package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ScheduleConfig
		wantErr bool
	}{
		{
			name: "daily",
			cfg:  ScheduleConfig{Frequency: FrequencyDaily, Hour: 9},
		},
		{
			name: "weekly with weekdays",
			cfg:  ScheduleConfig{Frequency: FrequencyWeekly, Hour: 9, Weekdays: []time.Weekday{time.Monday}},
		},
		{
			name:    "weekly without weekdays",
			cfg:     ScheduleConfig{Frequency: FrequencyWeekly, Hour: 9},
			wantErr: true,
		},
		{
			name: "monthly on day 31",
			cfg:  ScheduleConfig{Frequency: FrequencyMonthly, Hour: 9, DayOfMonth: 31},
		},
		{
			name:    "monthly day zero",
			cfg:     ScheduleConfig{Frequency: FrequencyMonthly, Hour: 9},
			wantErr: true,
		},
		{
			name:    "monthly day out of range",
			cfg:     ScheduleConfig{Frequency: FrequencyMonthly, Hour: 9, DayOfMonth: 32},
			wantErr: true,
		},
		{
			name:    "unknown frequency",
			cfg:     ScheduleConfig{Frequency: "hourly"},
			wantErr: true,
		},
		{
			name:    "hour out of range",
			cfg:     ScheduleConfig{Frequency: FrequencyDaily, Hour: 24},
			wantErr: true,
		},
		{
			name:    "minute out of range",
			cfg:     ScheduleConfig{Frequency: FrequencyDaily, Hour: 9, Minute: 60},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeekdaySet(t *testing.T) {
	cfg := ScheduleConfig{Weekdays: []time.Weekday{time.Monday, time.Friday}}
	set := cfg.WeekdaySet()
	assert.True(t, set[time.Monday])
	assert.True(t, set[time.Friday])
	assert.False(t, set[time.Wednesday])
}
