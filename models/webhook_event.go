package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent is the audit row for every gateway notification we receive,
// including ones that were rejected or not applied.
type WebhookEvent struct {
	gorm.Model

	GatewayID string         `gorm:"size:64;index" json:"gateway_id"`
	State     string         `gorm:"size:32" json:"state"`
	Signature string         `gorm:"size:128" json:"signature"`
	Payload   datatypes.JSON `json:"payload"`
	Applied   bool           `json:"applied"`
	Note      string         `gorm:"size:255" json:"note"`
}
