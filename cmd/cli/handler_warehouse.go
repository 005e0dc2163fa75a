package main

import (
	"net/http"
)

type WarehouseConfigPayload struct {
	Provider string                 `json:"provider"`
	Options  map[string]interface{} `json:"options"`
}

type OrderCreate struct {
	ExternalID *string       `json:"external_id"`
	Items      []interface{} `json:"items"`
}

type ToolMappingCreate struct {
	ExternalToolID string `json:"external_tool_id"`
	InternalToolID int64  `json:"internal_tool_id"`
}

// handleGetWarehouseConfig returns null until a provider is configured
func (rm *RouteManager) handleGetWarehouseConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := rm.dbManager.GetWarehouseConfig(r.Context())
	if err != nil {
		writeError(w, err, "load warehouse config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (rm *RouteManager) handleSaveWarehouseConfig(w http.ResponseWriter, r *http.Request) {
	var payload WarehouseConfigPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Provider == "" {
		writeDetail(w, http.StatusBadRequest, "provider is required")
		return
	}

	cfg, err := rm.dbManager.SaveWarehouseConfig(r.Context(), payload.Provider, payload.Options)
	if err != nil {
		writeError(w, err, "save warehouse config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (rm *RouteManager) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := rm.dbManager.ListToolOrders(r.Context())
	if err != nil {
		writeError(w, err, "list orders")
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (rm *RouteManager) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload OrderCreate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Items == nil {
		writeDetail(w, http.StatusBadRequest, "items is required")
		return
	}

	order, err := rm.dbManager.CreateToolOrder(r.Context(), payload.ExternalID, payload.Items)
	if err != nil {
		writeError(w, err, "create order")
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (rm *RouteManager) handleListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := rm.dbManager.ListToolMappings(r.Context())
	if err != nil {
		writeError(w, err, "list tool mappings")
		return
	}

	writeJSON(w, http.StatusOK, mappings)
}

func (rm *RouteManager) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var payload ToolMappingCreate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.ExternalToolID == "" {
		writeDetail(w, http.StatusBadRequest, "external_tool_id is required")
		return
	}

	mapping, err := rm.dbManager.CreateToolMapping(r.Context(), payload.ExternalToolID, payload.InternalToolID)
	if err != nil {
		writeError(w, err, "create tool mapping")
		return
	}

	writeJSON(w, http.StatusCreated, mapping)
}

func (rm *RouteManager) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rm.dbManager.DeleteToolMapping(r.Context(), id); err != nil {
		writeError(w, err, "delete tool mapping")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
