package main

import (
	"net/http"

	"github.com/kuncy7/toolid/pkg/models"
)

type ToolReturnRequest struct {
	ToolID int64 `json:"tool_id"`
}

type WeightMeasurement struct {
	WeightValue *float64 `json:"weight_value"`
}

func (rm *RouteManager) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := rm.dbManager.ListTools(r.Context())
	if err != nil {
		writeError(w, err, "list tools")
		return
	}

	writeJSON(w, http.StatusOK, tools)
}

func (rm *RouteManager) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	var payload models.ToolCreate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	tool, err := rm.dbManager.CreateTool(r.Context(), payload)
	if err != nil {
		writeError(w, err, "create tool")
		return
	}

	writeJSON(w, http.StatusCreated, tool)
}

func (rm *RouteManager) handleGetTool(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	tool, err := rm.dbManager.GetTool(r.Context(), id)
	if err != nil {
		writeError(w, err, "get tool")
		return
	}

	writeJSON(w, http.StatusOK, tool)
}

func (rm *RouteManager) handleUpdateTool(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload models.ToolUpdate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	tool, err := rm.dbManager.UpdateTool(r.Context(), id, payload)
	if err != nil {
		writeError(w, err, "update tool")
		return
	}

	writeJSON(w, http.StatusOK, tool)
}

func (rm *RouteManager) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rm.dbManager.DeleteTool(r.Context(), id); err != nil {
		writeError(w, err, "delete tool")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (rm *RouteManager) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	user := GetUserFromContext(r.Context())
	loan, err := rm.dbManager.CreateLoan(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err, "create loan")
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

func (rm *RouteManager) handleListLoans(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	loans, err := rm.dbManager.ListToolLoans(r.Context(), id)
	if err != nil {
		writeError(w, err, "list loans")
		return
	}

	writeJSON(w, http.StatusOK, loans)
}

func (rm *RouteManager) handleReturnTool(w http.ResponseWriter, r *http.Request) {
	var payload ToolReturnRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := rm.dbManager.ReturnTool(r.Context(), payload.ToolID)
	if err != nil {
		writeError(w, err, "return tool")
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

func (rm *RouteManager) handleListToolWeights(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := rm.dbManager.GetTool(r.Context(), id); err != nil {
		writeError(w, err, "get tool")
		return
	}

	weights, err := rm.dbManager.ListToolWeights(r.Context(), id)
	if err != nil {
		writeError(w, err, "list weights")
		return
	}

	writeJSON(w, http.StatusOK, weights)
}

func (rm *RouteManager) handleAddToolWeight(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload WeightMeasurement
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.WeightValue == nil {
		writeDetail(w, http.StatusBadRequest, "weight_value is required")
		return
	}

	user := GetUserFromContext(r.Context())
	weight, err := rm.dbManager.AddToolWeight(r.Context(), id, *payload.WeightValue, &user.ID)
	if err != nil {
		writeError(w, err, "add weight")
		return
	}

	writeJSON(w, http.StatusCreated, weight)
}

func (rm *RouteManager) handleRecogniseLoans(w http.ResponseWriter, r *http.Request) {
	details, err := rm.dbManager.ListUnreturnedLoanDetails(r.Context())
	if err != nil {
		writeError(w, err, "list unreturned loans")
		return
	}

	writeJSON(w, http.StatusOK, details)
}
