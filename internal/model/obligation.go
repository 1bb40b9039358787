package model

import (
	"time"

	"github.com/google/uuid"
)

type ObligationStatus string

const (
	ObligationStatusOpen        ObligationStatus = "open"
	ObligationStatusNegotiating ObligationStatus = "negotiating"
	ObligationStatusSettled     ObligationStatus = "settled"
	ObligationStatusWrittenOff  ObligationStatus = "written_off"
)

type PartyType string

const (
	PartyTypeIndividual   PartyType = "individual"
	PartyTypeOrganization PartyType = "organization"
)

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Channels lists every delivery channel in dispatch order.
var Channels = []Channel{ChannelWhatsApp, ChannelEmail}

func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelEmail
}

// Obligation is a debt record under collection. CreatedAt is the clock
// origin for elapsed-day computation.
type Obligation struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	ReferenceCode  string           `db:"reference_code" json:"reference_code"`
	DebtorName     string           `db:"debtor_name" json:"debtor_name"`
	PartyType      PartyType        `db:"party_type" json:"party_type"`
	TaxID          string           `db:"tax_id" json:"tax_id"`
	Kind           string           `db:"kind" json:"kind"`
	AmountOriginal float64          `db:"amount_original" json:"amount_original"`
	AmountAdjusted float64          `db:"amount_adjusted" json:"amount_adjusted"`
	Currency       string           `db:"currency" json:"currency"`
	Phone          *string          `db:"phone" json:"phone,omitempty"`
	Email          *string          `db:"email" json:"email,omitempty"`
	Status         ObligationStatus `db:"status" json:"status"`
	MilestoneState MilestoneState   `db:"milestone_state" json:"milestone_state"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// ContactFor returns the destination for a channel, or false if the
// obligation has no contact registered on it.
func (o *Obligation) ContactFor(ch Channel) (string, bool) {
	switch ch {
	case ChannelWhatsApp:
		if o.Phone != nil && *o.Phone != "" {
			return *o.Phone, true
		}
	case ChannelEmail:
		if o.Email != nil && *o.Email != "" {
			return *o.Email, true
		}
	}
	return "", false
}
