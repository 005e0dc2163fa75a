package main

import (
	"errors"
	"log"
	"net/http"
	"os"
)

type Base64ImagePayload struct {
	ImageData string `json:"image_data"`
}

type LocalImagePayload struct {
	LocalPath string `json:"local_path"`
}

func (rm *RouteManager) handleUploadBase64Image(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload Base64ImagePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := rm.dbManager.GetTool(r.Context(), id); err != nil {
		writeError(w, err, "get tool")
		return
	}

	_, raw, err := parseDataURL(payload.ImageData)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	rm.saveToolImage(w, r, id, raw)
}

func (rm *RouteManager) handleAssignLocalImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload LocalImagePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := rm.dbManager.GetTool(r.Context(), id); err != nil {
		writeError(w, err, "get tool")
		return
	}

	source, err := resolveAllowedPath(rm.settings.AllowedLocalPath, payload.LocalPath)
	if errors.Is(err, errOutsideAllowed) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Source file with ID '"+payload.LocalPath+"' not found")
		return
	}

	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		writeDetail(w, http.StatusNotFound, "Source file with ID '"+payload.LocalPath+"' not found")
		return
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		log.Printf("❌ Failed to read %s: %v", source, err)
		writeDetail(w, http.StatusInternalServerError, "Failed to copy file")
		return
	}

	rm.saveToolImage(w, r, id, raw)
}

func (rm *RouteManager) saveToolImage(w http.ResponseWriter, r *http.Request, toolID int64, raw []byte) {
	stored, err := storeImage(rm.settings.StaticDir, raw)
	if errors.Is(err, errUnsupportedImage) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("❌ Failed to store image for tool %d: %v", toolID, err)
		writeDetail(w, http.StatusInternalServerError, "Failed to process and save image")
		return
	}

	tool, err := rm.dbManager.SetToolImages(r.Context(), toolID, stored.ImageURL, stored.IconURL)
	if err != nil {
		writeError(w, err, "update tool images")
		return
	}

	writeJSON(w, http.StatusOK, tool)
}
