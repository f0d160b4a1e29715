package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/condo-ledger/internal/model"
)

type eventDraft struct {
	Type          model.EventType
	EntityID      uuid.UUID
	BuildingID    uuid.UUID
	RecipientKind model.RecipientKind
	RecipientID   uuid.UUID
	Data          interface{}
}

func newEvent(draft eventDraft, now time.Time) (model.OutboxEvent, error) {
	payload, err := json.Marshal(draft.Data)
	if err != nil {
		return model.OutboxEvent{}, err
	}
	return model.OutboxEvent{
		ID:            uuid.New(),
		EventType:     draft.Type,
		EntityID:      draft.EntityID,
		BuildingID:    draft.BuildingID,
		RecipientKind: draft.RecipientKind,
		RecipientID:   draft.RecipientID,
		Payload:       string(payload),
		CreatedAt:     now,
	}, nil
}

// toAdmins addresses an event to every admin of the building.
func toAdmins(t model.EventType, entityID, buildingID uuid.UUID, data interface{}) eventDraft {
	return eventDraft{
		Type:          t,
		EntityID:      entityID,
		BuildingID:    buildingID,
		RecipientKind: model.RecipientBuildingAdmins,
		RecipientID:   buildingID,
		Data:          data,
	}
}

func toUnit(t model.EventType, entityID, buildingID, unitID uuid.UUID, data interface{}) eventDraft {
	return eventDraft{
		Type:          t,
		EntityID:      entityID,
		BuildingID:    buildingID,
		RecipientKind: model.RecipientUnit,
		RecipientID:   unitID,
		Data:          data,
	}
}
