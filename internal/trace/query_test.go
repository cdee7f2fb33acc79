package trace

import (
	"context"
	"fmt"
	"testing"
)

func TestListAllShipmentsPagination(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		createShipment(t, s, fmt.Sprintf("SHIP-%02d", i))
	}

	page, err := s.ListAllShipments(ctx, 3, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.FetchedCount != 3 || len(page.Shipments) != 3 {
		t.Fatalf("unexpected page size %d", page.FetchedCount)
	}
	if page.NextBookmark == "" {
		t.Fatal("expected a bookmark")
	}

	var all []string
	bookmark := ""
	for {
		page, err := s.ListAllShipments(ctx, 3, bookmark)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, sh := range page.Shipments {
			all = append(all, sh.ID)
		}
		if page.NextBookmark == "" {
			break
		}
		bookmark = page.NextBookmark
	}
	if len(all) != 7 {
		t.Fatalf("expected 7 shipments across pages, got %d: %v", len(all), all)
	}
	for i := 1; i < len(all); i++ {
		if all[i] <= all[i-1] {
			t.Fatalf("ids out of order: %v", all)
		}
	}
}

func TestPaginationKeepsTailAfterFilteredBatch(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	// B is archived, so the page of 2 fills mid-batch on C and D sits in
	// the unexamined tail of the final store batch.
	for _, id := range []string{"SHIP-A", "SHIP-B", "SHIP-C", "SHIP-D"} {
		createShipment(t, s, id)
	}
	if _, err := s.ArchiveShipment(ctx, tAdmin, "SHIP-B"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	seen := map[string]bool{}
	bookmark := ""
	for {
		page, err := s.ListAllShipments(ctx, 2, bookmark)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, sh := range page.Shipments {
			seen[sh.ID] = true
		}
		if page.NextBookmark == "" {
			break
		}
		bookmark = page.NextBookmark
	}
	for _, id := range []string{"SHIP-A", "SHIP-C", "SHIP-D"} {
		if !seen[id] {
			t.Fatalf("%s dropped during pagination: %v", id, seen)
		}
	}
	if seen["SHIP-B"] {
		t.Fatal("archived shipment leaked into listing")
	}
}

func TestActionablePaginationKeepsTail(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"ACT-A", "ACT-B", "ACT-C", "ACT-D"} {
		createShipment(t, s, id)
	}
	if _, err := s.ArchiveShipment(ctx, tAdmin, "ACT-B"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	seen := map[string]bool{}
	bookmark := ""
	for {
		items, next, err := s.ListActionableShipments(ctx, tFarmer, 2, bookmark)
		if err != nil {
			t.Fatalf("actionable: %v", err)
		}
		for _, item := range items {
			seen[item.Shipment.ID] = true
		}
		if next == "" {
			break
		}
		bookmark = next
	}
	if len(seen) != 3 || !seen["ACT-D"] {
		t.Fatalf("expected A, C and D across pages, got %v", seen)
	}
}

func TestListFiltersExcludeArchived(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createShipment(t, s, "KEEP")
	createShipment(t, s, "HIDE")
	if _, err := s.ArchiveShipment(ctx, tAdmin, "HIDE"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	page, err := s.ListAllShipments(ctx, 0, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Shipments) != 1 || page.Shipments[0].ID != "KEEP" {
		t.Fatalf("archived shipment leaked into listing: %+v", page.Shipments)
	}
}

func TestListByOwnerAndStatus(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createShipment(t, s, "SHIP-1")
	createShipment(t, s, "SHIP-2")
	advanceToCertified(t, s, "SHIP-2")

	byOwner, err := s.ListShipmentsByOwner(ctx, tFarmer, 0, "")
	if err != nil {
		t.Fatalf("by owner: %v", err)
	}
	if len(byOwner.Shipments) != 2 {
		t.Fatalf("expected 2 for farmer, got %d", len(byOwner.Shipments))
	}

	byStatus, err := s.ListShipmentsByStatus(ctx, StatusCertified, 0, "")
	if err != nil {
		t.Fatalf("by status: %v", err)
	}
	if len(byStatus.Shipments) != 1 || byStatus.Shipments[0].ID != "SHIP-2" {
		t.Fatalf("unexpected status listing: %+v", byStatus.Shipments)
	}
}

func TestListActionableShipments(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createShipment(t, s, "NEW")       // farmer: submit
	createShipment(t, s, "PENDING")   // certifier: record
	if _, err := s.SubmitForCertification(ctx, tFarmer, "PENDING"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	farmerItems, _, err := s.ListActionableShipments(ctx, tFarmer, 0, "")
	if err != nil {
		t.Fatalf("farmer actionable: %v", err)
	}
	if len(farmerItems) != 1 || farmerItems[0].Shipment.ID != "NEW" || farmerItems[0].Action != "SUBMIT_FOR_CERTIFICATION" {
		t.Fatalf("unexpected farmer items: %+v", farmerItems)
	}

	certItems, _, err := s.ListActionableShipments(ctx, tCertifier, 0, "")
	if err != nil {
		t.Fatalf("certifier actionable: %v", err)
	}
	if len(certItems) != 1 || certItems[0].Action != "RECORD_CERTIFICATION" {
		t.Fatalf("unexpected certifier items: %+v", certItems)
	}

	// Recalled shipments drop out of actionable listings.
	if _, err := s.InitiateRecall(ctx, tAdmin, "NEW", "RCL-1", "drill"); err != nil {
		t.Fatalf("recall: %v", err)
	}
	farmerItems, _, err = s.ListActionableShipments(ctx, tFarmer, 0, "")
	if err != nil {
		t.Fatalf("farmer actionable: %v", err)
	}
	if len(farmerItems) != 0 {
		t.Fatalf("recalled shipment still actionable: %+v", farmerItems)
	}
}

func TestRejectedShipmentActionable(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createShipment(t, s, "SHIP-1")
	if _, err := s.SubmitForCertification(ctx, tFarmer, "SHIP-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.RecordCertification(ctx, tCertifier, "SHIP-1", CertificationRecord{Decision: CertRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	items, _, err := s.ListActionableShipments(ctx, tFarmer, 0, "")
	if err != nil {
		t.Fatalf("actionable: %v", err)
	}
	if len(items) != 1 || items[0].Action != "RESUBMIT_OR_CORRECT" {
		t.Fatalf("unexpected items: %+v", items)
	}
}
