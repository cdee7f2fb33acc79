package trace

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultRecallWindow = 72 * time.Hour
	maxRecallWindow     = 720 * time.Hour
)

// InitiateRecall flags a shipment as recalled. The status is untouched; the
// recall overlay blocks further non-admin lifecycle mutation.
func (s *Service) InitiateRecall(ctx context.Context, caller, id, recallID, reason string) (Shipment, error) {
	actor, err := s.actor(ctx, caller)
	if err != nil {
		return Shipment{}, err
	}
	if err := validateRequiredString(recallID, "recallId", maxStringInputLength); err != nil {
		return Shipment{}, err
	}
	if err := validateRequiredString(reason, "reason", maxRecallReasonLength); err != nil {
		return Shipment{}, err
	}

	sh, version, err := s.load(ctx, id)
	if err != nil {
		return Shipment{}, err
	}
	if sh.IsArchived {
		return Shipment{}, fmt.Errorf("%w: shipment %s is archived", ErrInvalidTransition, id)
	}
	if sh.CurrentOwnerAlias != actor.Alias && !actor.IsAdmin {
		return Shipment{}, fmt.Errorf("%w: only the owner or an admin may initiate a recall", ErrUnauthorized)
	}
	if sh.RecallInfo.IsRecalled {
		return Shipment{}, fmt.Errorf("%w: shipment %s is already recalled under %s", ErrInvalidTransition, id, sh.RecallInfo.RecallID)
	}

	sh.RecallInfo = RecallInfo{
		IsRecalled:        true,
		RecallID:          recallID,
		Reason:            reason,
		RecalledBy:        actor.Alias,
		RecalledAt:        s.now().UTC(),
		LinkedShipmentIDs: []string{},
	}
	sh.LastUpdatedAt = sh.RecallInfo.RecalledAt
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// QueryRelatedShipments suggests shipments that may share recall exposure
// with the target: same processing line, same distribution line, or same farm
// and harvest period, each within the given window. Advisory only; admins
// confirm links separately via AddLinkedShipmentsToRecall.
func (s *Service) QueryRelatedShipments(ctx context.Context, caller, id string, window time.Duration) ([]RelatedShipment, error) {
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = defaultRecallWindow
	}
	if window > maxRecallWindow {
		return nil, fmt.Errorf("%w: time window exceeds %s", ErrValidation, maxRecallWindow)
	}

	target, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var related []RelatedShipment
	err = s.scanShipments(ctx, func(sh Shipment) {
		if sh.ID == target.ID || sh.IsArchived {
			return
		}
		// Skip shipments already swept into the same recall.
		if sh.RecallInfo.IsRecalled && sh.RecallInfo.RecallID == target.RecallInfo.RecallID && target.RecallInfo.RecallID != "" {
			return
		}
		if rel, ok := relate(target, sh, window); ok {
			related = append(related, rel)
		}
	})
	if err != nil {
		return nil, err
	}
	return related, nil
}

func relate(target, candidate Shipment, window time.Duration) (RelatedShipment, bool) {
	if target.ProcessorData != nil && candidate.ProcessorData != nil &&
		target.ProcessorData.ProcessingLineID != "" &&
		target.ProcessorData.ProcessingLineID == candidate.ProcessorData.ProcessingLineID &&
		withinWindow(target.ProcessorData.DateProcessed, candidate.ProcessorData.DateProcessed, window) {
		return RelatedShipment{
			Shipment:       candidate,
			RelationReason: "same processing line within time window",
			LineID:         candidate.ProcessorData.ProcessingLineID,
			EventTimestamp: candidate.ProcessorData.DateProcessed,
		}, true
	}
	if target.DistributorData != nil && candidate.DistributorData != nil &&
		target.DistributorData.DistributionLineID != "" &&
		target.DistributorData.DistributionLineID == candidate.DistributorData.DistributionLineID &&
		withinWindow(target.DistributorData.PickupDateTime, candidate.DistributorData.PickupDateTime, window) {
		return RelatedShipment{
			Shipment:       candidate,
			RelationReason: "same distribution line within time window",
			LineID:         candidate.DistributorData.DistributionLineID,
			EventTimestamp: candidate.DistributorData.PickupDateTime,
		}, true
	}
	if target.FarmerData != nil && candidate.FarmerData != nil &&
		target.FarmerData.FarmerAlias == candidate.FarmerData.FarmerAlias &&
		target.FarmerData.FarmLocation == candidate.FarmerData.FarmLocation &&
		withinWindow(target.FarmerData.HarvestDate, candidate.FarmerData.HarvestDate, window) {
		return RelatedShipment{
			Shipment:       candidate,
			RelationReason: "same farm and harvest period",
			EventTimestamp: candidate.FarmerData.HarvestDate,
		}, true
	}
	return RelatedShipment{}, false
}

func withinWindow(a, b time.Time, window time.Duration) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// AddLinkedShipmentsToRecall confirms recall links: each linked shipment is
// flagged with the primary's recall id and appended to the primary's link
// list. Admin-only; link confirmation is an explicit administrative act.
// Idempotent per id; unknown ids and self-links are skipped.
func (s *Service) AddLinkedShipmentsToRecall(ctx context.Context, caller, recallID, primaryID string, linkedIDs []string) (Shipment, error) {
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return Shipment{}, err
	}
	if err := validateRequiredString(recallID, "recallId", maxStringInputLength); err != nil {
		return Shipment{}, err
	}
	if err := validateIDList(linkedIDs, "linkedShipmentIds"); err != nil {
		return Shipment{}, err
	}

	primary, primaryVersion, err := s.load(ctx, primaryID)
	if err != nil {
		return Shipment{}, err
	}
	if !primary.RecallInfo.IsRecalled || primary.RecallInfo.RecallID != recallID {
		return Shipment{}, fmt.Errorf("%w: shipment %s is not recalled under %s", ErrInvalidTransition, primaryID, recallID)
	}

	now := s.now().UTC()
	linked := make(map[string]struct{}, len(primary.RecallInfo.LinkedShipmentIDs))
	for _, existing := range primary.RecallInfo.LinkedShipmentIDs {
		linked[existing] = struct{}{}
	}

	var writes []write
	changed := false
	for _, id := range linkedIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == primaryID {
			continue
		}
		if _, done := linked[id]; done {
			continue
		}
		sh, version, err := s.load(ctx, id)
		if err != nil {
			// Unknown ids are skipped rather than failing the whole batch.
			continue
		}
		if !sh.RecallInfo.IsRecalled || sh.RecallInfo.RecallID != recallID {
			sh.RecallInfo.IsRecalled = true
			sh.RecallInfo.RecallID = recallID
			sh.RecallInfo.Reason = primary.RecallInfo.Reason
			sh.RecallInfo.RecalledBy = primary.RecallInfo.RecalledBy
			sh.RecallInfo.RecalledAt = now
			sh.LastUpdatedAt = now
			writes = append(writes, write{shipment: sh, version: version})
		}
		linked[id] = struct{}{}
		primary.RecallInfo.LinkedShipmentIDs = append(primary.RecallInfo.LinkedShipmentIDs, id)
		changed = true
	}

	if !changed {
		return primary, nil
	}
	primary.LastUpdatedAt = now
	writes = append(writes, write{shipment: primary, version: primaryVersion})
	if err := s.commit(ctx, writes); err != nil {
		return Shipment{}, err
	}
	return primary, nil
}
