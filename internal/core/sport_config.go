package core

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SportConfig holds the settings of one sport as an opaque JSON document.
// The combination of SportID and Name is unique (case-insensitive on the
// name): a sport can carry several named configurations.
type SportConfig struct {
	IdVersion IdVersion

	// SportID identifies the sport this configuration belongs to.
	SportID uuid.UUID
	// Name of the configuration, unique per sport.
	Name string
	// Config carries the sport-specific settings verbatim.
	Config json.RawMessage
}

// Clone returns a deep copy of the configuration.
func (c *SportConfig) Clone() *SportConfig {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Config != nil {
		cp.Config = make(json.RawMessage, len(c.Config))
		copy(cp.Config, c.Config)
	}
	return &cp
}
