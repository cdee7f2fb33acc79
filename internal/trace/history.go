package trace

import (
	"context"
	"encoding/json"
	"fmt"

	"foodtrace.org/internal/store"
)

// GetHistory replays the stored versions of a shipment into an ordered,
// actor-annotated timeline. Actors are inferred from owner-field deltas
// between consecutive snapshots; the store, not this reconstruction, is
// authoritative for causality.
func (s *Service) GetHistory(ctx context.Context, id string) ([]HistoryEntry, error) {
	snapshots, err := s.store.History(ctx, shipmentPrefix+id)
	if err == store.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(snapshots))
	var prev *Shipment
	for _, snap := range snapshots {
		var sh Shipment
		if err := json.Unmarshal(snap.Value, &sh); err != nil {
			return nil, err
		}
		entry := HistoryEntry{
			TxID:          snap.TxID,
			Timestamp:     snap.RecordedAt,
			ActorInferred: true,
			Snapshot:      sh,
		}
		if prev == nil {
			entry.ActorAlias = originalFarmer(sh)
			entry.Action = "shipment created"
		} else {
			entry.ActorAlias, entry.Action = diffSnapshots(*prev, sh)
		}
		entries = append(entries, entry)
		shCopy := sh
		prev = &shCopy
	}
	return entries, nil
}

// GetShipmentPublicDetails returns the current shipment together with its
// reconstructed history.
func (s *Service) GetShipmentPublicDetails(ctx context.Context, id string) (PublicDetails, error) {
	sh, _, err := s.load(ctx, id)
	if err != nil {
		return PublicDetails{}, err
	}
	history, err := s.GetHistory(ctx, id)
	if err != nil {
		return PublicDetails{}, err
	}
	return PublicDetails{Shipment: sh, History: history}, nil
}

func originalFarmer(sh Shipment) string {
	if sh.FarmerData != nil && sh.FarmerData.FarmerAlias != "" {
		return sh.FarmerData.FarmerAlias
	}
	return sh.CurrentOwnerAlias
}

// diffSnapshots derives the acting party and an action label from the deltas
// between two consecutive versions.
func diffSnapshots(prev, cur Shipment) (actor, action string) {
	actor = cur.CurrentOwnerAlias

	switch {
	case cur.RecallInfo.IsRecalled && !prev.RecallInfo.IsRecalled:
		actor = cur.RecallInfo.RecalledBy
		action = fmt.Sprintf("recall %s initiated", cur.RecallInfo.RecallID)
	case len(cur.RecallInfo.LinkedShipmentIDs) > len(prev.RecallInfo.LinkedShipmentIDs):
		actor = cur.RecallInfo.RecalledBy
		action = "recall links added"
	case cur.RecallInfo.IsRecalled && cur.RecallInfo.RecallID != prev.RecallInfo.RecallID:
		actor = cur.RecallInfo.RecalledBy
		action = fmt.Sprintf("linked to recall %s", cur.RecallInfo.RecallID)
	case cur.IsArchived != prev.IsArchived:
		if cur.IsArchived {
			action = "shipment archived"
		} else {
			action = "shipment unarchived"
		}
	case len(cur.CertificationRecords) > len(prev.CertificationRecords):
		rec := cur.CertificationRecords[len(cur.CertificationRecords)-1]
		actor = rec.CertifierAlias
		action = fmt.Sprintf("certification recorded: %s", rec.Decision)
	case cur.CurrentOwnerAlias != prev.CurrentOwnerAlias && cur.Status != prev.Status:
		action = fmt.Sprintf("ownership transferred to %s, status changed to %s", cur.CurrentOwnerAlias, cur.Status)
	case cur.CurrentOwnerAlias != prev.CurrentOwnerAlias:
		action = fmt.Sprintf("ownership transferred to %s", cur.CurrentOwnerAlias)
	case cur.Status != prev.Status:
		action = fmt.Sprintf("status changed to %s", cur.Status)
	default:
		action = "shipment updated"
	}
	return actor, action
}
