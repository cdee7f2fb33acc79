package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"foodtrace.org/internal/identity"
	"foodtrace.org/internal/ids"
	"foodtrace.org/internal/sim"
	"foodtrace.org/internal/store"
	"foodtrace.org/internal/trace"
)

// Runs the demo scenario against an in-process stack: registers the supply
// chain participants and drives generated harvests through the full
// lifecycle, with a fraction of shipments rejected or recalled along the way.
func main() {
	var (
		count       = flag.Int("count", 25, "Number of shipments to simulate")
		seed        = flag.Int64("seed", 0, "Random seed (0 = time-based)")
		recallRate  = flag.Float64("recall-rate", 0.1, "Fraction of delivered shipments to recall")
		openAIModel = flag.String("openai-model", "gpt-4o-mini", "Model for the run summary")
	)
	flag.Parse()

	ctx := context.Background()
	docs := store.NewInMemory()
	registry := identity.NewRegistry(docs)
	tracer := trace.NewService(docs, registry)
	generator := sim.NewGenerator(*seed)
	rnd := rand.New(rand.NewSource(*seed + 1))

	admin := "demo-admin"
	if _, err := registry.Register(ctx, "", identity.RegisterRequest{
		FullID: "demo::" + admin,
		Alias:  admin,
	}); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	participants := generator.Participants()
	for _, p := range participants {
		if _, err := registry.Register(ctx, admin, identity.RegisterRequest{
			FullID:       "demo::" + p.Alias,
			Alias:        p.Alias,
			Organization: p.Org,
		}); err != nil {
			log.Fatalf("register %s: %v", p.Alias, err)
		}
		if err := registry.AssignRole(ctx, admin, p.Alias, p.Role); err != nil {
			log.Fatalf("assign role %s to %s: %v", p.Role, p.Alias, err)
		}
	}

	aliasFor := func(role string) string {
		for _, p := range participants {
			if p.Role == role {
				return p.Alias
			}
		}
		log.Fatalf("scenario missing role %s", role)
		return ""
	}
	farmer := aliasFor("farmer")
	certifier := aliasFor("certifier")
	processor := aliasFor("processor")
	distributor := aliasFor("distributor")
	retailer := aliasFor("retailer")

	var counter sim.Counter
	for i := 0; i < *count; i++ {
		h := generator.NextHarvest()
		counter.Add(h)

		_, err := tracer.CreateShipment(ctx, farmer, trace.NewShipment{
			ID:            h.ShipmentID,
			ProductName:   h.ProductName,
			Quantity:      h.Quantity,
			UnitOfMeasure: h.UnitOfMeasure,
			Farmer: trace.FarmerData{
				FarmLocation:         h.FarmLocation,
				CropType:             h.CropType,
				PlantingDate:         h.HarvestDate.AddDate(0, -3, 0),
				HarvestDate:          h.HarvestDate,
				DestinationProcessor: processor,
			},
		})
		if err != nil {
			log.Fatalf("create %s: %v", h.ShipmentID, err)
		}
		if _, err := tracer.SubmitForCertification(ctx, farmer, h.ShipmentID); err != nil {
			log.Fatalf("submit %s: %v", h.ShipmentID, err)
		}

		decision := trace.CertApproved
		if rnd.Float64() < 0.1 {
			decision = trace.CertRejected
		}
		if _, err := tracer.RecordCertification(ctx, certifier, h.ShipmentID, trace.CertificationRecord{
			Decision: decision,
			Comments: "routine inspection",
		}); err != nil {
			log.Fatalf("certify %s: %v", h.ShipmentID, err)
		}
		if decision == trace.CertRejected {
			log.Printf("%s rejected at certification", h.ShipmentID)
			continue
		}

		if _, err := tracer.ProcessShipment(ctx, processor, h.ShipmentID, trace.ProcessorData{
			DateProcessed:          time.Now().UTC(),
			ProcessingType:         "washing",
			ProcessingLineID:       "LINE-1",
			DestinationDistributor: distributor,
		}); err != nil {
			log.Fatalf("process %s: %v", h.ShipmentID, err)
		}
		if _, err := tracer.DistributeShipment(ctx, distributor, h.ShipmentID, trace.DistributorData{
			PickupDateTime:      time.Now().UTC(),
			DistributionLineID:  "ROUTE-7",
			DestinationRetailer: retailer,
		}); err != nil {
			log.Fatalf("distribute %s: %v", h.ShipmentID, err)
		}
		if _, err := tracer.ReceiveShipment(ctx, retailer, h.ShipmentID, trace.RetailerData{
			DateReceived: time.Now().UTC(),
		}); err != nil {
			log.Fatalf("receive %s: %v", h.ShipmentID, err)
		}
		counter.Delivered++

		if rnd.Float64() < *recallRate {
			if _, err := tracer.InitiateRecall(ctx, admin, h.ShipmentID, ids.NewRecall(), "simulated contamination drill"); err != nil {
				log.Fatalf("recall %s: %v", h.ShipmentID, err)
			}
			counter.Recalled++
		}
	}

	log.Printf("Simulation complete: %d shipments, %d delivered, %d recalled, %.1f kg total",
		counter.Shipments, counter.Delivered, counter.Recalled, counter.TotalQuantity)

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && counter.Shipments > 0 {
		summary, err := sim.Summarize(ctx, counter, sim.SummaryRequest{APIKey: key, Model: *openAIModel})
		if err != nil {
			log.Printf("AI summary error: %v", err)
		} else {
			log.Println("AI Executive Summary:")
			log.Println(summary)
		}
	} else {
		log.Println("Set OPENAI_API_KEY to enable AI narrative summaries.")
	}
}
