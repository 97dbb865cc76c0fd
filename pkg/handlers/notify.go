package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"workshop/pkg/claims"
	"workshop/pkg/realtime"
)

const (
	muxVarVehicleID string = "vehicleId"
	muxVarTaskID    string = "taskId"
)

// Emitter is implemented by *realtime.Broadcaster.
type Emitter interface {
	EmitToUser(userID, event string, payload any) error
	EmitToRole(room, event string, payload any) error
	Broadcast(event string, payload any) error
}

type NotifyHandler struct {
	Emitter Emitter
	Logger  *slog.Logger
}

func NewNotifyHandler(emitter Emitter, logger *slog.Logger) *NotifyHandler {
	return &NotifyHandler{Emitter: emitter, Logger: logger}
}

type positionForm struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type taskStatusForm struct {
	VehicleID string `json:"vehicleId"`
	Status    string `json:"status"`
}

type alertForm struct {
	Message string              `json:"message"`
	Level   realtime.AlertLevel `json:"level"`
	UserID  string              `json:"userId"`
}

func (h *NotifyHandler) VehiclePosition(w http.ResponseWriter, r *http.Request) {
	var req positionForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	payload := realtime.VehiclePosition{VehicleID: mux.Vars(r)[muxVarVehicleID], X: req.X, Y: req.Y}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, typeMessage, err.Error())
		return
	}

	h.dispatch(w, r, realtime.EventVehiclePosition, h.Emitter.Broadcast(realtime.EventVehiclePosition, payload))
}

func (h *NotifyHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	var req taskStatusForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	payload := realtime.TaskStatus{TaskID: mux.Vars(r)[muxVarTaskID], VehicleID: req.VehicleID, Status: req.Status}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, typeMessage, err.Error())
		return
	}

	h.dispatch(w, r, realtime.EventTaskStatus,
		h.Emitter.EmitToRole(realtime.RoomManagers, realtime.EventTaskStatus, payload))
}

// Alert goes to the managers room unless a single recipient is named.
func (h *NotifyHandler) Alert(w http.ResponseWriter, r *http.Request) {
	var req alertForm
	if ok := DecodeJSONBody(w, r, &req); !ok {
		return
	}

	payload := realtime.Alert{Message: req.Message, Level: req.Level}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, typeMessage, err.Error())
		return
	}

	var err error
	if req.UserID != "" {
		err = h.Emitter.EmitToUser(req.UserID, realtime.EventAlertCreated, payload)
	} else {
		err = h.Emitter.EmitToRole(realtime.RoomManagers, realtime.EventAlertCreated, payload)
	}
	h.dispatch(w, r, realtime.EventAlertCreated, err)
}

func (h *NotifyHandler) dispatch(w http.ResponseWriter, r *http.Request, event string, err error) {
	sender, _ := claims.FromContext(r.Context())
	if err != nil {
		h.Logger.Error("event dispatch failed", "event", event, "user_id", sender.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "dispatch failed")
		return
	}
	h.Logger.Info("event dispatched", "event", event, "user_id", sender.UserID)
	WriteResp(w, h.Logger, map[string]any{typeMessage: "sent"}, http.StatusAccepted)
}
