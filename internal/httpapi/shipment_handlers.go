package httpapi

import (
	"net/http"
	"strings"
	"time"

	"foodtrace.org/internal/audit"
	"foodtrace.org/internal/stream"
	"foodtrace.org/internal/trace"
)

type createShipmentRequest struct {
	ID            string           `json:"id"`
	ProductName   string           `json:"productName"`
	Description   string           `json:"description"`
	Quantity      float64          `json:"quantity"`
	UnitOfMeasure string           `json:"unitOfMeasure"`
	FarmerData    trace.FarmerData `json:"farmerData"`
}

func (a *API) handleShipmentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createShipmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sh, err := a.tracer.CreateShipment(r.Context(), callerAlias(r), trace.NewShipment{
			ID:            req.ID,
			ProductName:   req.ProductName,
			Description:   req.Description,
			Quantity:      req.Quantity,
			UnitOfMeasure: req.UnitOfMeasure,
			Farmer:        req.FarmerData,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.recordShipmentEvent(r, sh, "shipment created")
		writeJSON(w, http.StatusCreated, sh)

	case http.MethodGet:
		pageSize, err := parsePageSize(r.URL.Query().Get("page_size"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		bookmark := r.URL.Query().Get("bookmark")
		owner := strings.TrimSpace(r.URL.Query().Get("owner"))
		status := strings.TrimSpace(r.URL.Query().Get("status"))

		var page trace.Page
		switch {
		case owner != "" && status != "":
			writeError(w, r, http.StatusBadRequest, "owner and status filters are mutually exclusive")
			return
		case owner != "":
			page, err = a.tracer.ListShipmentsByOwner(r.Context(), owner, pageSize, bookmark)
		case status != "":
			page, err = a.tracer.ListShipmentsByStatus(r.Context(), trace.Status(status), pageSize, bookmark)
		default:
			page, err = a.tracer.ListAllShipments(r.Context(), pageSize, bookmark)
		}
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

type certificationRequest struct {
	Decision       trace.CertDecision `json:"decision"`
	Comments       string             `json:"comments"`
	InspectionDate time.Time          `json:"inspectionDate"`
}

// handleShipmentResource dispatches /v1/shipments/{id} and its lifecycle
// sub-resources.
func (a *API) handleShipmentResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/shipments/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		writeError(w, r, http.StatusNotFound, "shipment id is required")
		return
	}

	if id == "actionable" && len(parts) == 1 {
		a.handleActionable(w, r)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		sh, err := a.tracer.GetShipment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sh)
		return
	}

	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "unknown shipment resource")
		return
	}

	sub := parts[1]
	if r.Method == http.MethodGet {
		switch sub {
		case "details":
			details, err := a.tracer.GetShipmentPublicDetails(r.Context(), id)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, details)
		case "history":
			history, err := a.tracer.GetHistory(r.Context(), id)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"shipmentId": id,
				"history":    history,
			})
		case "sensor-logs":
			logs, err := a.tracer.GetSensorLogs(r.Context(), callerAlias(r), id)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"shipmentId": id,
				"sensorLogs": logs,
			})
		default:
			writeError(w, r, http.StatusNotFound, "unknown shipment resource")
		}
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}

	caller := callerAlias(r)
	var (
		sh     trace.Shipment
		err    error
		action string
	)
	switch sub {
	case "submit-certification":
		sh, err = a.tracer.SubmitForCertification(r.Context(), caller, id)
		action = "submitted for certification"

	case "certification":
		var req certificationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sh, err = a.tracer.RecordCertification(r.Context(), caller, id, trace.CertificationRecord{
			Decision:       req.Decision,
			Comments:       req.Comments,
			InspectionDate: req.InspectionDate,
		})
		action = "certification recorded"

	case "process":
		var pd trace.ProcessorData
		if err := decodeJSON(w, r, &pd); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sh, err = a.tracer.ProcessShipment(r.Context(), caller, id, pd)
		action = "processed"

	case "distribute":
		var dd trace.DistributorData
		if err := decodeJSON(w, r, &dd); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sh, err = a.tracer.DistributeShipment(r.Context(), caller, id, dd)
		action = "distributed"

	case "receive":
		var rd trace.RetailerData
		if err := decodeJSON(w, r, &rd); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sh, err = a.tracer.ReceiveShipment(r.Context(), caller, id, rd)
		action = "received"

	case "consume":
		sh, err = a.tracer.MarkConsumed(r.Context(), caller, id)
		action = "consumed"

	case "sensor-logs":
		var reading trace.ColdChainLog
		if err := decodeJSON(w, r, &reading); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sh, err = a.tracer.AddSensorLog(r.Context(), caller, id, reading)
		action = "sensor reading recorded"

	case "archive":
		sh, err = a.tracer.ArchiveShipment(r.Context(), caller, id)
		action = "archived"

	case "unarchive":
		sh, err = a.tracer.UnarchiveShipment(r.Context(), caller, id)
		action = "unarchived"

	default:
		writeError(w, r, http.StatusNotFound, "unknown shipment resource")
		return
	}

	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.recordShipmentEvent(r, sh, action)
	writeJSON(w, http.StatusOK, sh)
}

func (a *API) handleActionable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	pageSize, err := parsePageSize(r.URL.Query().Get("page_size"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, next, err := a.tracer.ListActionableShipments(r.Context(), callerAlias(r), pageSize, r.URL.Query().Get("bookmark"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []trace.ActionableShipment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shipments":    items,
		"nextBookmark": next,
	})
}

type transformRequest struct {
	InputShipmentIDs []string               `json:"inputShipmentIds"`
	Outputs          []trace.NewProductSpec `json:"outputs"`
	ProcessorData    trace.ProcessorData    `json:"processorData"`
}

func (a *API) handleTransformations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req transformRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	outputs, err := a.tracer.Transform(r.Context(), callerAlias(r), req.InputShipmentIDs, req.Outputs, req.ProcessorData)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	for _, sh := range outputs {
		a.recordShipmentEvent(r, sh, "created by transformation")
	}
	_ = audit.LogEvent(r.Context(), "shipment.transformed", map[string]any{
		"inputs":  req.InputShipmentIDs,
		"outputs": len(outputs),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"outputs": outputs,
	})
}

// recordShipmentEvent publishes a live event and writes an audit entry for a
// successful lifecycle mutation.
func (a *API) recordShipmentEvent(r *http.Request, sh trace.Shipment, action string) {
	actor := callerAlias(r)
	if a.stream != nil {
		a.stream.Publish(stream.ShipmentEvent{
			ShipmentID: sh.ID,
			Status:     string(sh.Status),
			Actor:      actor,
			Action:     action,
			RecallID:   sh.RecallInfo.RecallID,
			Timestamp:  time.Now().UTC(),
		})
	}
	_ = audit.LogEvent(r.Context(), "shipment."+strings.ReplaceAll(action, " ", "_"), map[string]any{
		"shipment_id": sh.ID,
		"status":      string(sh.Status),
	})
}
