package model

import "github.com/google/uuid"

// MessageTemplate is a notification body keyed by (channel, milestone,
// party type). A nil PartyType marks the channel-generic fallback row.
// Bodies use {{variable}} placeholders; see template.Resolver for the
// supported vocabulary.
type MessageTemplate struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Channel   Channel    `db:"channel" json:"channel"`
	Milestone int        `db:"milestone" json:"milestone"`
	PartyType *PartyType `db:"party_type" json:"party_type,omitempty"`
	Subject   *string    `db:"subject" json:"subject,omitempty"`
	Body      string     `db:"body" json:"body"`
}
