package trace

import (
	"context"
	"encoding/json"
	"strings"

	"foodtrace.org/internal/identity"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// GetShipment returns the current state of a shipment.
func (s *Service) GetShipment(ctx context.Context, id string) (Shipment, error) {
	sh, _, err := s.load(ctx, id)
	return sh, err
}

// ListAllShipments pages through every non-archived shipment in id order.
func (s *Service) ListAllShipments(ctx context.Context, pageSize int, bookmark string) (Page, error) {
	return s.listWhere(ctx, pageSize, bookmark, func(sh Shipment) bool {
		return !sh.IsArchived
	})
}

// ListShipmentsByOwner pages through the shipments currently owned by owner.
func (s *Service) ListShipmentsByOwner(ctx context.Context, owner string, pageSize int, bookmark string) (Page, error) {
	owner = strings.TrimSpace(strings.ToLower(owner))
	return s.listWhere(ctx, pageSize, bookmark, func(sh Shipment) bool {
		return !sh.IsArchived && sh.CurrentOwnerAlias == owner
	})
}

// ListShipmentsByStatus pages through shipments in the given status.
func (s *Service) ListShipmentsByStatus(ctx context.Context, status Status, pageSize int, bookmark string) (Page, error) {
	return s.listWhere(ctx, pageSize, bookmark, func(sh Shipment) bool {
		return !sh.IsArchived && sh.Status == status
	})
}

// ListActionableShipments pages through shipments whose state makes them
// eligible for the caller's next permitted operation.
func (s *Service) ListActionableShipments(ctx context.Context, caller string, pageSize int, bookmark string) ([]ActionableShipment, string, error) {
	actor, err := s.actor(ctx, caller)
	if err != nil {
		return nil, "", err
	}
	pageSize = clampPageSize(pageSize)

	var out []ActionableShipment
	cursor := bookmark
	for len(out) < pageSize {
		docs, next, err := s.store.Query(ctx, shipmentPrefix, pageSize, cursor)
		if err != nil {
			return nil, "", err
		}
		full := false
		for i, doc := range docs {
			var sh Shipment
			if err := json.Unmarshal(doc.Value, &sh); err != nil {
				return nil, "", err
			}
			cursor = doc.Key
			if action, ok := nextAction(actor, sh); ok {
				out = append(out, ActionableShipment{Shipment: sh, Action: action})
				if len(out) == pageSize {
					// Scan is only complete when the final batch was
					// examined to its last document.
					if next == "" && i == len(docs)-1 {
						cursor = ""
					}
					full = true
					break
				}
			}
		}
		if full {
			break
		}
		if next == "" {
			cursor = ""
			break
		}
	}
	return out, cursor, nil
}

// nextAction maps a shipment's state to the caller's next permitted action
// label, if any.
func nextAction(a identity.Info, sh Shipment) (string, bool) {
	if sh.IsArchived || sh.RecallInfo.IsRecalled {
		return "", false
	}
	switch sh.Status {
	case StatusCreated:
		if a.HasRole("farmer") {
			return "SUBMIT_FOR_CERTIFICATION", true
		}
	case StatusCertificationDenied:
		if a.HasRole("farmer") {
			return "RESUBMIT_OR_CORRECT", true
		}
	case StatusPendingCertification:
		if a.HasRole("certifier") {
			return "RECORD_CERTIFICATION", true
		}
	case StatusCertified:
		if a.HasRole("processor") {
			return "PROCESS_SHIPMENT", true
		}
	case StatusProcessed:
		if a.HasRole("distributor") {
			return "DISTRIBUTE_SHIPMENT", true
		}
		if a.HasRole("processor") {
			return "USE_IN_TRANSFORMATION", true
		}
	case StatusDistributed:
		if a.HasRole("retailer") {
			return "RECEIVE_SHIPMENT", true
		}
	case StatusDelivered:
		if a.HasRole("retailer") {
			return "MARK_CONSUMED", true
		}
	}
	return "", false
}

// listWhere pages matching shipments, looping store pages until a full
// result page is assembled or the scan ends. The bookmark is the last store
// key examined, so a filtered scan resumes without re-reading.
func (s *Service) listWhere(ctx context.Context, pageSize int, bookmark string, match func(Shipment) bool) (Page, error) {
	pageSize = clampPageSize(pageSize)
	page := Page{Shipments: []Shipment{}}
	cursor := bookmark
	for len(page.Shipments) < pageSize {
		docs, next, err := s.store.Query(ctx, shipmentPrefix, pageSize, cursor)
		if err != nil {
			return Page{}, err
		}
		full := false
		for i, doc := range docs {
			var sh Shipment
			if err := json.Unmarshal(doc.Value, &sh); err != nil {
				return Page{}, err
			}
			cursor = doc.Key
			if match(sh) {
				page.Shipments = append(page.Shipments, sh)
				if len(page.Shipments) == pageSize {
					// Scan is only complete when the final batch was
					// examined to its last document.
					if next == "" && i == len(docs)-1 {
						cursor = ""
					}
					full = true
					break
				}
			}
		}
		if full {
			break
		}
		if next == "" {
			cursor = ""
			break
		}
	}
	page.FetchedCount = len(page.Shipments)
	page.NextBookmark = cursor
	return page, nil
}

// scanShipments visits every shipment document.
func (s *Service) scanShipments(ctx context.Context, fn func(Shipment)) error {
	cursor := ""
	for {
		docs, next, err := s.store.Query(ctx, shipmentPrefix, 100, cursor)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			var sh Shipment
			if err := json.Unmarshal(doc.Value, &sh); err != nil {
				return err
			}
			fn(sh)
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func clampPageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}
