package trace

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInitiateRecallOverlay(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createShipment(t, s, "SHIP-1")
	advanceToDelivered(t, s, "SHIP-1")

	sh, err := s.InitiateRecall(ctx, tRetailer, "SHIP-1", "RCL-1", "listeria detected")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if !sh.RecallInfo.IsRecalled || sh.RecallInfo.RecallID != "RCL-1" {
		t.Fatalf("recall overlay not set: %+v", sh.RecallInfo)
	}
	if sh.Status != StatusDelivered {
		t.Fatalf("recall must not change status, got %s", sh.Status)
	}
	if sh.RecallInfo.RecalledBy != tRetailer {
		t.Fatalf("unexpected initiator %s", sh.RecallInfo.RecalledBy)
	}

	// Recalled shipments reject further non-admin lifecycle mutation.
	if _, err := s.MarkConsumed(ctx, tRetailer, "SHIP-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("mutating recalled shipment: expected ErrInvalidTransition, got %v", err)
	}
	// Admins may still intervene.
	if _, err := s.MarkConsumed(ctx, tAdmin, "SHIP-1"); err != nil {
		t.Fatalf("admin consume on recalled shipment: %v", err)
	}
}

func TestInitiateRecallGuards(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createShipment(t, s, "SHIP-1")

	// Non-owner, non-admin.
	if _, err := s.InitiateRecall(ctx, tRetailer, "SHIP-1", "RCL-1", "reason"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner recall: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.InitiateRecall(ctx, tFarmer, "SHIP-1", "", "reason"); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing recall id: expected ErrValidation, got %v", err)
	}
	if _, err := s.InitiateRecall(ctx, tFarmer, "SHIP-1", "RCL-1", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing reason: expected ErrValidation, got %v", err)
	}

	if _, err := s.InitiateRecall(ctx, tFarmer, "SHIP-1", "RCL-1", "reason"); err != nil {
		t.Fatalf("recall: %v", err)
	}
	if _, err := s.InitiateRecall(ctx, tFarmer, "SHIP-1", "RCL-2", "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double recall: expected ErrInvalidTransition, got %v", err)
	}
}

func TestQueryRelatedShipments(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	base := time.Now().UTC()
	mkProcessed := func(id string, line string, when time.Time) {
		// Distinct farms so only the processing-line heuristic can match.
		req := newShipmentReq(id)
		req.Farmer.FarmLocation = "Farm " + id
		if _, err := s.CreateShipment(ctx, tFarmer, req); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		advanceToCertified(t, s, id)
		if _, err := s.ProcessShipment(ctx, tProcessor, id, ProcessorData{
			DateProcessed:    when,
			ProcessingType:   "washing",
			ProcessingLineID: line,
		}); err != nil {
			t.Fatalf("process %s: %v", id, err)
		}
	}

	mkProcessed("TARGET", "LINE-A", base)
	mkProcessed("NEAR", "LINE-A", base.Add(24*time.Hour))   // same line, inside window
	mkProcessed("FAR", "LINE-A", base.Add(200*time.Hour))   // same line, outside window
	mkProcessed("OTHER", "LINE-B", base.Add(1*time.Hour))   // different line

	if _, err := s.QueryRelatedShipments(ctx, tProcessor, "TARGET", 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin related search: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.QueryRelatedShipments(ctx, tAdmin, "TARGET", 1000*time.Hour); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized window: expected ErrValidation, got %v", err)
	}

	related, err := s.QueryRelatedShipments(ctx, tAdmin, "TARGET", 0)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 1 {
		t.Fatalf("expected exactly NEAR, got %d results", len(related))
	}
	if related[0].Shipment.ID != "NEAR" {
		t.Fatalf("unexpected candidate %s", related[0].Shipment.ID)
	}
	if related[0].RelationReason != "same processing line within time window" {
		t.Fatalf("unexpected reason %q", related[0].RelationReason)
	}

	// A wider window pulls FAR in as well.
	related, err = s.QueryRelatedShipments(ctx, tAdmin, "TARGET", 300*time.Hour)
	if err != nil {
		t.Fatalf("related wide: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("expected NEAR and FAR, got %d", len(related))
	}
}

func TestQueryRelatedByFarm(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// Same farmer, same location, same harvest period.
	createShipment(t, s, "A")
	createShipment(t, s, "B")

	related, err := s.QueryRelatedShipments(ctx, tAdmin, "A", 0)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 1 || related[0].Shipment.ID != "B" {
		t.Fatalf("expected B via farm heuristic, got %+v", related)
	}
	if related[0].RelationReason != "same farm and harvest period" {
		t.Fatalf("unexpected reason %q", related[0].RelationReason)
	}
}

func TestAddLinkedShipmentsToRecall(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createShipment(t, s, "PRIMARY")
	createShipment(t, s, "LINK-1")
	createShipment(t, s, "LINK-2")

	if _, err := s.InitiateRecall(ctx, tFarmer, "PRIMARY", "RCL-1", "contamination"); err != nil {
		t.Fatalf("recall: %v", err)
	}

	// Wrong recall id.
	if _, err := s.AddLinkedShipmentsToRecall(ctx, tAdmin, "RCL-9", "PRIMARY", []string{"LINK-1"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("wrong recall id: expected ErrInvalidTransition, got %v", err)
	}
	// Link confirmation is admin-only; even the initiator may not link.
	if _, err := s.AddLinkedShipmentsToRecall(ctx, tRetailer, "RCL-1", "PRIMARY", []string{"LINK-1"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unauthorized link: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.AddLinkedShipmentsToRecall(ctx, tFarmer, "RCL-1", "PRIMARY", []string{"LINK-1"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("initiator link: expected ErrUnauthorized, got %v", err)
	}

	// Unknown ids and self-links are skipped, known ones propagate the recall.
	primary, err := s.AddLinkedShipmentsToRecall(ctx, tAdmin, "RCL-1", "PRIMARY", []string{"LINK-1", "LINK-2", "PRIMARY", "GHOST"})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if len(primary.RecallInfo.LinkedShipmentIDs) != 2 {
		t.Fatalf("unexpected links %v", primary.RecallInfo.LinkedShipmentIDs)
	}
	for _, id := range []string{"LINK-1", "LINK-2"} {
		linked, err := s.GetShipment(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if !linked.RecallInfo.IsRecalled || linked.RecallInfo.RecallID != "RCL-1" {
			t.Fatalf("%s not swept into recall: %+v", id, linked.RecallInfo)
		}
		if linked.RecallInfo.Reason != "contamination" {
			t.Fatalf("%s reason not propagated: %q", id, linked.RecallInfo.Reason)
		}
	}

	// Re-linking the same ids is a no-op.
	primary, err = s.AddLinkedShipmentsToRecall(ctx, tAdmin, "RCL-1", "PRIMARY", []string{"LINK-1"})
	if err != nil {
		t.Fatalf("re-link: %v", err)
	}
	if len(primary.RecallInfo.LinkedShipmentIDs) != 2 {
		t.Fatalf("idempotence broken: %v", primary.RecallInfo.LinkedShipmentIDs)
	}
}
