package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"foodtrace.org/internal/audit"
	"foodtrace.org/internal/ids"
	"foodtrace.org/internal/stream"
	"foodtrace.org/internal/trace"
)

type initiateRecallRequest struct {
	ShipmentID string `json:"shipmentId"`
	RecallID   string `json:"recallId"`
	Reason     string `json:"reason"`
}

func (a *API) handleRecallsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req initiateRecallRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recallID := strings.TrimSpace(req.RecallID)
	if recallID == "" {
		recallID = ids.NewRecall()
	}
	sh, err := a.tracer.InitiateRecall(r.Context(), callerAlias(r), req.ShipmentID, recallID, req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if a.stream != nil {
		a.stream.Publish(stream.ShipmentEvent{
			ShipmentID: sh.ID,
			Status:     string(sh.Status),
			Actor:      callerAlias(r),
			Action:     "recall initiated",
			RecallID:   recallID,
			Timestamp:  time.Now().UTC(),
		})
	}
	_ = audit.LogEvent(r.Context(), "recall.initiated", map[string]any{
		"shipment_id": sh.ID,
		"recall_id":   recallID,
	})
	writeJSON(w, http.StatusCreated, sh)
}

// handleRecallResource dispatches the recall sub-resources:
// GET /v1/recalls/related and POST /v1/recalls/{recallId}/links.
func (a *API) handleRecallResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/recalls/")
	parts := strings.Split(rest, "/")

	if len(parts) == 1 && parts[0] == "related" {
		a.handleRelatedShipments(w, r)
		return
	}

	if len(parts) == 2 && parts[1] == "links" {
		a.handleRecallLinks(w, r, parts[0])
		return
	}

	writeError(w, r, http.StatusNotFound, "unknown recall resource")
}

func (a *API) handleRelatedShipments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	shipmentID := strings.TrimSpace(r.URL.Query().Get("shipment_id"))
	if shipmentID == "" {
		writeError(w, r, http.StatusBadRequest, "shipment_id query parameter is required")
		return
	}
	var window time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("window_hours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 0 {
			writeError(w, r, http.StatusBadRequest, "window_hours must be a non-negative integer")
			return
		}
		window = time.Duration(hours) * time.Hour
	}
	related, err := a.tracer.QueryRelatedShipments(r.Context(), callerAlias(r), shipmentID, window)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if related == nil {
		related = []trace.RelatedShipment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shipmentId": shipmentID,
		"related":    related,
	})
}

type recallLinksRequest struct {
	PrimaryShipmentID string   `json:"primaryShipmentId"`
	LinkedShipmentIDs []string `json:"linkedShipmentIds"`
}

func (a *API) handleRecallLinks(w http.ResponseWriter, r *http.Request, recallID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req recallLinksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sh, err := a.tracer.AddLinkedShipmentsToRecall(r.Context(), callerAlias(r), recallID, req.PrimaryShipmentID, req.LinkedShipmentIDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "recall.links_added", map[string]any{
		"recall_id":   recallID,
		"primary_id":  req.PrimaryShipmentID,
		"linked_ids":  req.LinkedShipmentIDs,
		"total_links": len(sh.RecallInfo.LinkedShipmentIDs),
	})
	writeJSON(w, http.StatusOK, sh)
}
