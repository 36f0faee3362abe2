package channel

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/mapsync/internal/core/models"
)

const (
	TypeObjectiveTaken = "ObjectiveTaken"
	TypeServerPawns    = "ServerPawns"
)

// Envelope is the part of every push frame used for routing. Event specific
// fields sit next to it at the top level of the same JSON object.
type Envelope struct {
	EventType string `json:"eventType"`
}

// Validator is implemented by payloads that check themselves after decoding.
// Listen counts a failing payload as malformed and skips the handler.
type Validator interface {
	Validate() error
}

// ObjectiveTaken requires both ids. A missing faction is not "no faction".
type ObjectiveTaken struct {
	ObjectiveID models.ID `json:"objectiveId"`
	FactionID   models.ID `json:"factionId"`
}

func (e *ObjectiveTaken) UnmarshalJSON(data []byte) error {
	var raw struct {
		ObjectiveID *models.ID `json:"objectiveId"`
		FactionID   *models.ID `json:"factionId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.ObjectiveID == nil:
		return fmt.Errorf("%w: objectiveId", ErrMissingField)
	case raw.FactionID == nil:
		return fmt.Errorf("%w: factionId", ErrMissingField)
	}
	e.ObjectiveID, e.FactionID = *raw.ObjectiveID, *raw.FactionID
	return nil
}

// ServerPawns is the full pawn set of one server, not a delta. An empty
// array clears the server; a missing or null one is rejected.
type ServerPawns struct {
	ServerID models.ID     `json:"serverId"`
	Pawns    []models.Pawn `json:"pawns"`
}

func (e *ServerPawns) UnmarshalJSON(data []byte) error {
	var raw struct {
		ServerID *models.ID     `json:"serverId"`
		Pawns    *[]models.Pawn `json:"pawns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.ServerID == nil:
		return fmt.Errorf("%w: serverId", ErrMissingField)
	case raw.Pawns == nil || *raw.Pawns == nil:
		return fmt.Errorf("%w: pawns", ErrMissingField)
	}
	e.ServerID, e.Pawns = *raw.ServerID, *raw.Pawns
	return nil
}
