package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// NoMilestoneFired is the sentinel for an obligation that was never notified.
const NoMilestoneFired = -1

type MilestoneFlags map[int]bool

// MilestoneState is the persisted per-obligation notification state: one
// already-notified flag map per channel plus the highest milestone any
// channel fired, used to skip already-passed thresholds. Stored as a single
// JSONB column so marker updates stay atomic per obligation.
type MilestoneState struct {
	WhatsApp           MilestoneFlags `json:"whatsapp"`
	Email              MilestoneFlags `json:"email"`
	LastMilestoneFired int            `json:"last_milestone_fired"`
}

func NewMilestoneState() MilestoneState {
	return MilestoneState{
		WhatsApp:           MilestoneFlags{},
		Email:              MilestoneFlags{},
		LastMilestoneFired: NoMilestoneFired,
	}
}

func (s MilestoneState) FlagsFor(ch Channel) MilestoneFlags {
	switch ch {
	case ChannelWhatsApp:
		return s.WhatsApp
	case ChannelEmail:
		return s.Email
	}
	return nil
}

// Notified reports whether the (channel, milestone) marker is already set.
func (s MilestoneState) Notified(ch Channel, milestone int) bool {
	return s.FlagsFor(ch)[milestone]
}

func (s MilestoneState) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *MilestoneState) Scan(src interface{}) error {
	if src == nil {
		*s = NewMilestoneState()
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported milestone state type %T", src)
	}

	state := NewMilestoneState()
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to decode milestone state: %w", err)
	}
	if state.WhatsApp == nil {
		state.WhatsApp = MilestoneFlags{}
	}
	if state.Email == nil {
		state.Email = MilestoneFlags{}
	}
	*s = state
	return nil
}
