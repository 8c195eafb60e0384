package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/pkg/log"
)

type handler struct {
	subsystem Subsystem
	repo      Repository
}

func (h *handler) lifecycle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":      h.subsystem.State(),
		"components": h.subsystem.States(),
	})
}

func (h *handler) createDevice(w http.ResponseWriter, r *http.Request) {
	var device model.Device
	if !decode(w, r, &device) {
		return
	}
	device.AssignmentToken = ""
	if err := h.repo.CreateDevice(r.Context(), &device); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &device)
}

func (h *handler) getDevice(w http.ResponseWriter, r *http.Request) {
	device, err := h.repo.GetDevice(r.Context(), mux.Vars(r)["hardwareId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (h *handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	var assignment model.DeviceAssignment
	if !decode(w, r, &assignment) {
		return
	}
	if err := h.repo.CreateAssignment(r.Context(), &assignment); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &assignment)
}

func (h *handler) createCommand(w http.ResponseWriter, r *http.Request) {
	var command model.DeviceCommand
	if !decode(w, r, &command) {
		return
	}
	if err := h.repo.CreateCommand(r.Context(), &command); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &command)
}

// createInvocation records the invocation and hands it to the dispatch path.
// With ?sync=true it is delivered on the request goroutine instead and
// delivery failures are returned.
func (h *handler) createInvocation(w http.ResponseWriter, r *http.Request) {
	var invocation model.CommandInvocation
	if !decode(w, r, &invocation) {
		return
	}
	ctx := r.Context()

	if _, err := h.repo.GetCommand(ctx, invocation.CommandToken); err != nil {
		writeError(w, err)
		return
	}
	assignment, err := h.repo.GetAssignment(ctx, invocation.AssignmentToken)
	if err != nil {
		writeError(w, err)
		return
	}
	invocation.HardwareID = assignment.HardwareID
	if invocation.Initiator == "" {
		invocation.Initiator = model.InitiatorREST
	}

	if err := h.repo.CreateInvocation(ctx, &invocation); err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("sync") == "true" {
		if err := h.subsystem.DeliverCommand(ctx, &invocation); err != nil {
			log.Error(err, "Synchronous delivery failed", "invocation", invocation.ID, "kind", core.KindOf(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &invocation)
		return
	}

	h.subsystem.NotifyCommandInvocationRecorded(&invocation)
	writeJSON(w, http.StatusAccepted, &invocation)
}

func (h *handler) getInvocation(w http.ResponseWriter, r *http.Request) {
	invocation, err := h.repo.GetInvocation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invocation)
}

func (h *handler) listResponses(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.repo.GetInvocation(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	responses, err := h.repo.ListCommandResponses(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *handler) createBatchOperation(w http.ResponseWriter, r *http.Request) {
	var op model.BatchOperation
	if !decode(w, r, &op) {
		return
	}
	if op.OperationType == "" {
		op.OperationType = model.BatchInvokeCommand
	}
	if op.OperationType != model.BatchInvokeCommand {
		writeError(w, fmt.Errorf("%w: operation type %q", core.ErrUnsupportedOperation, op.OperationType))
		return
	}
	if _, err := h.repo.GetCommand(r.Context(), op.Parameters[model.ParamCommandToken]); err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.CreateBatchOperation(r.Context(), &op); err != nil {
		writeError(w, err)
		return
	}

	h.subsystem.NotifyBatchOperationRecorded(&op)
	writeJSON(w, http.StatusAccepted, &op)
}

func (h *handler) getBatchOperation(w http.ResponseWriter, r *http.Request) {
	op, err := h.repo.GetBatchOperation(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *handler) listBatchElements(w http.ResponseWriter, r *http.Request) {
	elements, err := h.repo.ListBatchElements(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body: " + err.Error(), Kind: string(core.KindValidation)})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyExists):
		return http.StatusConflict
	}

	switch core.KindOf(err) {
	case core.KindValidation, core.KindConversion:
		return http.StatusBadRequest
	case core.KindRouting:
		return http.StatusUnprocessableEntity
	case core.KindNotRunning:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorBody{Error: err.Error(), Kind: string(core.KindOf(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to write response")
	}
}
