package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RoomManagers is the shared room every elevated connection joins.
const RoomManagers = "managers"

const (
	EventVehiclePosition = "vehicle:position"
	EventTaskStatus      = "task:status"
	EventAlertCreated    = "alert:created"
	EventPong            = "pong"
)

var ErrInvalidPayload = errors.New("invalid event payload")

type VehiclePosition struct {
	VehicleID string  `json:"vehicleId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

func (p VehiclePosition) Validate() error {
	if p.VehicleID == "" {
		return fmt.Errorf("%w: vehicleId is required", ErrInvalidPayload)
	}
	return nil
}

type TaskStatus struct {
	TaskID    string `json:"taskId"`
	VehicleID string `json:"vehicleId"`
	Status    string `json:"status"`
}

func (s TaskStatus) Validate() error {
	switch {
	case s.TaskID == "":
		return fmt.Errorf("%w: taskId is required", ErrInvalidPayload)
	case s.VehicleID == "":
		return fmt.Errorf("%w: vehicleId is required", ErrInvalidPayload)
	case s.Status == "":
		return fmt.Errorf("%w: status is required", ErrInvalidPayload)
	}
	return nil
}

type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

type Alert struct {
	Message string     `json:"message"`
	Level   AlertLevel `json:"level"`
}

func (a Alert) Validate() error {
	if a.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidPayload)
	}
	switch a.Level {
	case AlertInfo, AlertWarning, AlertError:
		return nil
	}
	return fmt.Errorf("%w: unknown alert level %q", ErrInvalidPayload, a.Level)
}

// Envelope is the JSON text frame written to clients.
type Envelope struct {
	Event  string    `json:"event"`
	Data   any       `json:"data,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	b, err := json.Marshal(Envelope{Event: event, Data: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("realtime: failed to encode %s: %w", event, err)
	}
	return b, nil
}

// clientMessage is what clients may send; only "ping" is understood.
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
