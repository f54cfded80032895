package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"go-stocksync/internal/model"
)

// Notifier broadcasts inventory alerts over the hub. Fire-and-forget: a
// marshal failure is logged and dropped, it never reaches the caller.
type Notifier struct {
	hub *Hub
	log zerolog.Logger
}

func NewNotifier(hub *Hub, log zerolog.Logger) *Notifier {
	return &Notifier{hub: hub, log: log}
}

type lowStockEvent struct {
	Type           string                `json:"type"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	Items          []model.InventoryItem `json:"items"`
	At             time.Time             `json:"at"`
}

func (n *Notifier) SendLowStockAlert(organizationID uuid.UUID, items []model.InventoryItem) {
	payload, err := json.Marshal(lowStockEvent{
		Type:           "low_stock",
		OrganizationID: organizationID,
		Items:          items,
		At:             time.Now(),
	})
	if err != nil {
		n.log.Error().Err(err).Msg("low stock event marshal failed")
		return
	}
	n.hub.Broadcast <- payload
}
