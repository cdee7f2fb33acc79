package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// End-to-end smoke run against a live foodtrace-api instance. Bootstraps an
// admin, registers the supply chain participants, drives one shipment through
// the full lifecycle and checks the reconstructed history.
func main() {
	base := os.Getenv("FOODTRACE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	run := fmt.Sprintf("smoke%d", rand.Intn(1_000_000))
	admin := run + "-admin"
	farmer := run + "-farmer"
	certifier := run + "-certifier"
	processor := run + "-processor"
	distributor := run + "-distributor"
	retailer := run + "-retailer"

	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	// Bootstrap: first registration needs no token and becomes admin.
	c.post("", "/v1/identities", map[string]any{
		"fullId":       "smoke::" + admin,
		"alias":        admin,
		"organization": "Smoke Test Org",
		"password":     "smoke-pass",
	})
	adminTok := c.token(admin, "smoke-pass")

	for alias, role := range map[string]string{
		farmer:      "farmer",
		certifier:   "certifier",
		processor:   "processor",
		distributor: "distributor",
		retailer:    "retailer",
	} {
		c.post(adminTok, "/v1/identities", map[string]any{
			"fullId":   "smoke::" + alias,
			"alias":    alias,
			"password": "smoke-pass",
		})
		c.post(adminTok, "/v1/identities/"+alias+"/roles", map[string]any{"role": role})
	}

	shipmentID := run + "-shipment"
	now := time.Now().UTC()
	c.post(c.token(farmer, "smoke-pass"), "/v1/shipments", map[string]any{
		"id":            shipmentID,
		"productName":   "Heirloom Tomatoes",
		"quantity":      120.5,
		"unitOfMeasure": "kg",
		"farmerData": map[string]any{
			"farmLocation":              "Green Valley",
			"cropType":                  "tomato",
			"plantingDate":              now.AddDate(0, -3, 0).Format(time.RFC3339),
			"harvestDate":               now.AddDate(0, 0, -1).Format(time.RFC3339),
			"destinationProcessorAlias": processor,
		},
	})
	c.post(c.token(farmer, "smoke-pass"), "/v1/shipments/"+shipmentID+"/submit-certification", nil)
	c.post(c.token(certifier, "smoke-pass"), "/v1/shipments/"+shipmentID+"/certification", map[string]any{
		"decision": "APPROVED",
		"comments": "clean inspection",
	})
	c.post(c.token(processor, "smoke-pass"), "/v1/shipments/"+shipmentID+"/process", map[string]any{
		"dateProcessed":               now.Format(time.RFC3339),
		"processingType":              "washing",
		"destinationDistributorAlias": distributor,
	})
	c.post(c.token(distributor, "smoke-pass"), "/v1/shipments/"+shipmentID+"/distribute", map[string]any{
		"pickupDateTime":           now.Format(time.RFC3339),
		"destinationRetailerAlias": retailer,
	})
	c.post(c.token(retailer, "smoke-pass"), "/v1/shipments/"+shipmentID+"/receive", map[string]any{
		"dateReceived": now.Format(time.RFC3339),
	})

	var details struct {
		Shipment struct {
			Status string `json:"status"`
		} `json:"shipment"`
		History []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	c.get("/v1/shipments/"+shipmentID+"/details", &details)
	if details.Shipment.Status != "DELIVERED" {
		log.Fatalf("unexpected final status: %s", details.Shipment.Status)
	}
	if len(details.History) < 6 {
		log.Fatalf("history too short: %d entries", len(details.History))
	}
	if details.History[0].Action != "shipment created" {
		log.Fatalf("unexpected first history action: %s", details.History[0].Action)
	}

	// Recall overlays the flag without touching the status.
	c.post(adminTok, "/v1/recalls", map[string]any{
		"shipmentId": shipmentID,
		"reason":     "smoke drill",
	})
	var recalled struct {
		Status     string `json:"status"`
		RecallInfo struct {
			IsRecalled bool `json:"isRecalled"`
		} `json:"recallInfo"`
	}
	c.authGet(adminTok, "/v1/shipments/"+shipmentID, &recalled)
	if !recalled.RecallInfo.IsRecalled || recalled.Status != "DELIVERED" {
		log.Fatalf("recall overlay broken: recalled=%v status=%s", recalled.RecallInfo.IsRecalled, recalled.Status)
	}

	fmt.Printf("✅ foodtrace smoke test passed: shipment=%s\n", shipmentID)
}

type client struct {
	base string
	http *http.Client
}

func (c *client) do(method, token, path string, body, out any) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s: %v", path, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		log.Fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var msg map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		log.Fatalf("%s %s -> %d: %v", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", path, err)
		}
	}
}

func (c *client) post(token, path string, body any) {
	c.do(http.MethodPost, token, path, body, nil)
}

func (c *client) get(path string, out any) {
	c.do(http.MethodGet, "", path, nil, out)
}

func (c *client) authGet(token, path string, out any) {
	c.do(http.MethodGet, token, path, nil, out)
}

func (c *client) token(alias, password string) string {
	var res struct {
		AccessToken string `json:"access_token"`
	}
	c.do(http.MethodPost, "", "/v1/auth/token", map[string]any{
		"alias":    alias,
		"password": password,
	}, &res)
	if res.AccessToken == "" {
		log.Fatalf("empty token for %s", alias)
	}
	return res.AccessToken
}
