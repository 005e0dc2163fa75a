package main

import (
	"net/http"

	"github.com/kuncy7/toolid/pkg/models"
)

type IntegrationCreate struct {
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}

type IntegrationTestResult struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (rm *RouteManager) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := rm.dbManager.ListIntegrations(r.Context())
	if err != nil {
		writeError(w, err, "list integrations")
		return
	}

	writeJSON(w, http.StatusOK, integrations)
}

func (rm *RouteManager) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var payload IntegrationCreate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Name == "" || payload.Type == "" {
		writeDetail(w, http.StatusBadRequest, "name and type are required")
		return
	}

	integration, err := rm.dbManager.CreateIntegration(r.Context(), payload.Name, payload.Type, payload.Config)
	if err != nil {
		writeError(w, err, "create integration")
		return
	}

	writeJSON(w, http.StatusCreated, integration)
}

func (rm *RouteManager) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	integration, err := rm.dbManager.GetIntegration(r.Context(), id)
	if err != nil {
		writeError(w, err, "get integration")
		return
	}

	writeJSON(w, http.StatusOK, integration)
}

func (rm *RouteManager) handleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload models.IntegrationUpdate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	integration, err := rm.dbManager.UpdateIntegration(r.Context(), id, payload)
	if err != nil {
		writeError(w, err, "update integration")
		return
	}

	writeJSON(w, http.StatusOK, integration)
}

func (rm *RouteManager) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rm.dbManager.DeleteIntegration(r.Context(), id); err != nil {
		writeError(w, err, "delete integration")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTestIntegration records a connection test. No remote call is made yet.
func (rm *RouteManager) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := rm.dbManager.GetIntegration(r.Context(), id); err != nil {
		writeError(w, err, "get integration")
		return
	}

	result := IntegrationTestResult{ID: id.String(), OK: true, Message: "Connection successful"}

	if _, err := rm.dbManager.AddIntegrationLog(r.Context(), id, "test", "success", result.Message); err != nil {
		writeError(w, err, "log integration test")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (rm *RouteManager) handleIntegrationLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := rm.dbManager.ListIntegrationLogs(r.Context(), id)
	if err != nil {
		writeError(w, err, "list integration logs")
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
