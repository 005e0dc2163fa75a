package main

import (
	"net/http"

	"github.com/kuncy7/toolid/pkg/models"
)

type PasswordReset struct {
	NewPassword string `json:"new_password"`
}

type PermissionUpdate struct {
	Module     string `json:"module"`
	Permission string `json:"permission"`
	Granted    bool   `json:"granted"`
}

func (rm *RouteManager) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rm.dbManager.ListUsers(r.Context())
	if err != nil {
		writeError(w, err, "list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (rm *RouteManager) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload models.UserCreate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := rm.dbManager.CreateUser(r.Context(), payload)
	if err != nil {
		writeError(w, err, "create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (rm *RouteManager) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := rm.dbManager.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err, "get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (rm *RouteManager) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload models.UserUpdate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := rm.dbManager.UpdateUser(r.Context(), id, payload)
	if err != nil {
		writeError(w, err, "update user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (rm *RouteManager) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rm.dbManager.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err, "delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (rm *RouteManager) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload PasswordReset
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := rm.dbManager.SetUserPassword(r.Context(), id, payload.NewPassword); err != nil {
		writeError(w, err, "reset password")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (rm *RouteManager) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := rm.dbManager.GetUser(r.Context(), id); err != nil {
		writeError(w, err, "get user")
		return
	}

	permissions, err := rm.dbManager.ListUserPermissions(r.Context(), id)
	if err != nil {
		writeError(w, err, "list permissions")
		return
	}

	writeJSON(w, http.StatusOK, permissions)
}

func (rm *RouteManager) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload PermissionUpdate
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Module == "" || payload.Permission == "" {
		writeDetail(w, http.StatusBadRequest, "module and permission are required")
		return
	}

	if _, err := rm.dbManager.GetUser(r.Context(), id); err != nil {
		writeError(w, err, "get user")
		return
	}

	permission, err := rm.dbManager.UpsertUserPermission(r.Context(), id, payload.Module, payload.Permission, payload.Granted)
	if err != nil {
		writeError(w, err, "update permission")
		return
	}

	writeJSON(w, http.StatusOK, permission)
}
