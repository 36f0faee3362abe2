// Package schema publishes JSON Schemas for the push event envelopes so
// feeders in other languages can validate what they send.
package schema

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/zeusync/mapsync/internal/core/events/channel"
	"github.com/zeusync/mapsync/internal/core/events/emissions"
)

type ObjectiveTakenEnvelope struct {
	EventType string `json:"eventType" jsonschema:"enum=ObjectiveTaken"`
	channel.ObjectiveTaken
}

type ServerPawnsEnvelope struct {
	EventType string `json:"eventType" jsonschema:"enum=ServerPawns"`
	channel.ServerPawns
}

type EmissionsEnvelope struct {
	EventType string `json:"eventType" jsonschema:"enum=Emissions"`
	emissions.Event
}

var envelopes = map[string]struct {
	value       any
	description string
}{
	channel.TypeObjectiveTaken: {&ObjectiveTakenEnvelope{}, "An objective changed owner."},
	channel.TypeServerPawns:    {&ServerPawnsEnvelope{}, "Every pawn currently on one server. Replaces the previous set."},
	emissions.Type:             {&EmissionsEnvelope{}, "Transient emissions to flash on the map."},
}

// EventTypes lists the event types a schema exists for.
func EventTypes() []string {
	out := make([]string, 0, len(envelopes))
	for name := range envelopes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// For returns the schema of one event type.
func For(eventType string) (*jsonschema.Schema, bool) {
	env, ok := envelopes[eventType]
	if !ok {
		return nil, false
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
	}
	s := reflector.Reflect(env.value)
	s.Title = eventType
	s.Description = env.description
	return s, true
}

// Document returns every event schema keyed by event type, indented.
func Document() ([]byte, error) {
	doc := make(map[string]*jsonschema.Schema, len(envelopes))
	for _, name := range EventTypes() {
		doc[name], _ = For(name)
	}
	return json.MarshalIndent(doc, "", "  ")
}
