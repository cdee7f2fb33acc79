package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"foodtrace.org/internal/auth"
	"foodtrace.org/internal/identity"
	"foodtrace.org/internal/store"
	"foodtrace.org/internal/stream"
	"foodtrace.org/internal/trace"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("FOODTRACE_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	docs := store.NewInMemory()
	registry := identity.NewRegistry(docs)
	tracer := trace.NewService(docs, registry)

	api := New(ReadyProbe{}, "test", registry, tracer, stream.New())
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) del(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodDelete, path, nil, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// bootstrapAdmin registers the initial admin and returns its auth header.
func (c *apiClient) bootstrapAdmin() map[string]string {
	c.t.Helper()
	resp := c.post("/v1/identities", map[string]any{
		"fullId":   "x509::root",
		"alias":    "root",
		"password": "root-pass",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("bootstrap status: %d", resp.StatusCode)
	}
	return c.authHeader("root", "root-pass")
}

func (c *apiClient) authHeader(alias, password string) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"alias":    alias,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("token status for %s: %d", alias, resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.AccessToken == "" {
		c.t.Fatalf("empty token issued for %s", alias)
	}
	return map[string]string{"Authorization": "Bearer " + payload.AccessToken}
}

// registerParticipant creates an identity with a role and returns its header.
func (c *apiClient) registerParticipant(adminHeader map[string]string, alias, role string) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/identities", map[string]any{
		"fullId":   "x509::" + alias,
		"alias":    alias,
		"password": alias + "-pass",
	}, adminHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s status: %d", alias, resp.StatusCode)
	}
	resp = c.post("/v1/identities/"+alias+"/roles", map[string]any{"role": role}, adminHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("assign %s status: %d", role, resp.StatusCode)
	}
	return c.authHeader(alias, alias+"-pass")
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func farmerPayload(destProcessor string) map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"farmLocation":              "Green Valley",
		"cropType":                  "tomato",
		"plantingDate":              now.AddDate(0, -3, 0).Format(time.RFC3339),
		"harvestDate":               now.AddDate(0, 0, -1).Format(time.RFC3339),
		"destinationProcessorAlias": destProcessor,
	}
}

func TestBootstrapAndIdentityFlow(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()

	// Anonymous registration is only allowed while no admin exists.
	resp := api.post("/v1/identities", map[string]any{
		"fullId": "x509::eve",
		"alias":  "eve",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("anonymous register after bootstrap: %d", resp.StatusCode)
	}

	api.registerParticipant(adminHeader, "alice", "farmer")

	resp = api.get("/v1/identities/alice", nil, adminHeader)
	info := decode[identity.Info](t, resp)
	if info.Alias != "alice" || len(info.Roles) != 1 || info.Roles[0] != "farmer" {
		t.Fatalf("unexpected identity: %+v", info)
	}
	if info.PasswordHash != "" {
		t.Fatal("password hash leaked over the API")
	}

	// Role removal via DELETE.
	resp = api.del("/v1/identities/alice/roles/farmer", adminHeader)
	info = decode[identity.Info](t, resp)
	if len(info.Roles) != 0 {
		t.Fatalf("role not removed: %v", info.Roles)
	}

	// Admin grant and the self-demotion guard.
	resp = api.post("/v1/identities/alice/admin", nil, adminHeader)
	info = decode[identity.Info](t, resp)
	if !info.IsAdmin {
		t.Fatal("admin flag not set")
	}
	resp = api.del("/v1/identities/root/admin", adminHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self-demotion: expected 403, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/roles/counts", nil, adminHeader)
	counts := decode[identity.RoleCounts](t, resp)
	if counts.TotalUsers != 2 || counts.Counts["admin"] != 2 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestTokenRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.bootstrapAdmin()

	resp := api.post("/v1/auth/token", map[string]any{
		"alias":    "root",
		"password": "wrong",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)
	api.bootstrapAdmin()

	resp := api.get("/v1/shipments", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/shipments", nil, map[string]string{"Authorization": "Bearer garbage"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", resp.StatusCode)
	}
}

func TestShipmentLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()
	farmer := api.registerParticipant(adminHeader, "farmer1", "farmer")
	certifier := api.registerParticipant(adminHeader, "certifier1", "certifier")
	processor := api.registerParticipant(adminHeader, "processor1", "processor")
	distributor := api.registerParticipant(adminHeader, "distributor1", "distributor")
	retailer := api.registerParticipant(adminHeader, "retailer1", "retailer")

	resp := api.post("/v1/shipments", map[string]any{
		"id":            "SHIP-1",
		"productName":   "Heirloom Tomatoes",
		"quantity":      100,
		"unitOfMeasure": "kg",
		"farmerData":    farmerPayload("processor1"),
	}, farmer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	sh := decode[trace.Shipment](t, resp)
	if sh.Status != trace.StatusCreated {
		t.Fatalf("unexpected status %s", sh.Status)
	}

	resp = api.post("/v1/shipments/SHIP-1/submit-certification", nil, farmer)
	sh = decode[trace.Shipment](t, resp)
	if sh.Status != trace.StatusPendingCertification {
		t.Fatalf("unexpected status %s", sh.Status)
	}

	resp = api.post("/v1/shipments/SHIP-1/certification", map[string]any{
		"decision": "APPROVED",
		"comments": "clean inspection",
	}, certifier)
	sh = decode[trace.Shipment](t, resp)
	if sh.Status != trace.StatusCertified {
		t.Fatalf("unexpected status %s", sh.Status)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	resp = api.post("/v1/shipments/SHIP-1/process", map[string]any{
		"dateProcessed":               now,
		"processingType":              "washing",
		"destinationDistributorAlias": "distributor1",
	}, processor)
	sh = decode[trace.Shipment](t, resp)
	if sh.Status != trace.StatusProcessed || sh.CurrentOwnerAlias != "processor1" {
		t.Fatalf("unexpected state after processing: %+v", sh)
	}

	resp = api.post("/v1/shipments/SHIP-1/distribute", map[string]any{
		"pickupDateTime":           now,
		"destinationRetailerAlias": "retailer1",
	}, distributor)
	sh = decode[trace.Shipment](t, resp)
	if sh.Status != trace.StatusDistributed {
		t.Fatalf("unexpected status %s", sh.Status)
	}

	resp = api.post("/v1/shipments/SHIP-1/receive", map[string]any{
		"dateReceived": now,
	}, retailer)
	sh = decode[trace.Shipment](t, resp)
	if sh.Status != trace.StatusDelivered {
		t.Fatalf("unexpected status %s", sh.Status)
	}

	// Public provenance needs no token.
	resp = api.get("/v1/shipments/SHIP-1/details", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public details status: %d", resp.StatusCode)
	}
	details := decode[trace.PublicDetails](t, resp)
	if len(details.History) != 6 {
		t.Fatalf("expected 6 history entries, got %d", len(details.History))
	}

	resp = api.post("/v1/shipments/SHIP-1/consume", nil, retailer)
	sh = decode[trace.Shipment](t, resp)
	if sh.Status != trace.StatusConsumed {
		t.Fatalf("unexpected status %s", sh.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()
	farmer := api.registerParticipant(adminHeader, "farmer1", "farmer")
	certifier := api.registerParticipant(adminHeader, "certifier1", "certifier")

	// Validation failure -> 400.
	resp := api.post("/v1/shipments", map[string]any{
		"id":            "SHIP-1",
		"productName":   "Tomatoes",
		"quantity":      0,
		"unitOfMeasure": "kg",
		"farmerData":    farmerPayload(""),
	}, farmer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("validation: expected 400, got %d", resp.StatusCode)
	}

	// Unknown shipment -> 404.
	resp = api.get("/v1/shipments/GHOST", nil, farmer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("not found: expected 404, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/shipments", map[string]any{
		"id":            "SHIP-1",
		"productName":   "Tomatoes",
		"quantity":      10,
		"unitOfMeasure": "kg",
		"farmerData":    farmerPayload(""),
	}, farmer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}

	// Duplicate id -> 409.
	resp = api.post("/v1/shipments", map[string]any{
		"id":            "SHIP-1",
		"productName":   "Tomatoes",
		"quantity":      10,
		"unitOfMeasure": "kg",
		"farmerData":    farmerPayload(""),
	}, farmer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.StatusCode)
	}

	// Invalid transition -> 409.
	resp = api.post("/v1/shipments/SHIP-1/certification", map[string]any{
		"decision": "APPROVED",
	}, certifier)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("invalid transition: expected 409, got %d", resp.StatusCode)
	}

	// Wrong role -> 403.
	resp = api.post("/v1/shipments/SHIP-1/submit-certification", nil, certifier)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong role: expected 403, got %d", resp.StatusCode)
	}

	// Unknown fields are rejected by the strict decoder.
	resp = api.post("/v1/shipments", map[string]any{
		"id":       "SHIP-2",
		"bogus":    true,
		"quantity": 10,
	}, farmer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", resp.StatusCode)
	}
}

func TestTransformEndpoint(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()
	farmer := api.registerParticipant(adminHeader, "farmer1", "farmer")
	certifier := api.registerParticipant(adminHeader, "certifier1", "certifier")
	processor := api.registerParticipant(adminHeader, "processor1", "processor")

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range []string{"IN-1", "IN-2"} {
		resp := api.post("/v1/shipments", map[string]any{
			"id":            id,
			"productName":   "Tomatoes",
			"quantity":      50,
			"unitOfMeasure": "kg",
			"farmerData":    farmerPayload("processor1"),
		}, farmer)
		resp.Body.Close()
		resp = api.post("/v1/shipments/"+id+"/submit-certification", nil, farmer)
		resp.Body.Close()
		resp = api.post("/v1/shipments/"+id+"/certification", map[string]any{"decision": "APPROVED"}, certifier)
		resp.Body.Close()
		resp = api.post("/v1/shipments/"+id+"/process", map[string]any{
			"dateProcessed":  now,
			"processingType": "washing",
		}, processor)
		resp.Body.Close()
	}

	resp := api.post("/v1/transformations", map[string]any{
		"inputShipmentIds": []string{"IN-1", "IN-2"},
		"outputs": []map[string]any{
			{"id": "OUT-1", "productName": "Tomato Sauce", "quantity": 80, "unitOfMeasure": "l"},
		},
		"processorData": map[string]any{
			"dateProcessed":  now,
			"processingType": "milling",
		},
	}, processor)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("transform status: %d", resp.StatusCode)
	}
	out := decode[struct {
		Outputs []trace.Shipment `json:"outputs"`
	}](t, resp)
	if len(out.Outputs) != 1 || !out.Outputs[0].IsDerivedProduct {
		t.Fatalf("unexpected outputs: %+v", out.Outputs)
	}

	resp = api.get("/v1/shipments/IN-1", nil, processor)
	in := decode[trace.Shipment](t, resp)
	if in.Status != trace.StatusConsumedInProcessing {
		t.Fatalf("input not consumed: %s", in.Status)
	}
}

func TestSensorLogEndpoints(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()
	farmer := api.registerParticipant(adminHeader, "farmer1", "farmer")
	certifier := api.registerParticipant(adminHeader, "certifier1", "certifier")
	processor := api.registerParticipant(adminHeader, "processor1", "processor")
	distributor := api.registerParticipant(adminHeader, "distributor1", "distributor")

	now := time.Now().UTC().Format(time.RFC3339)
	resp := api.post("/v1/shipments", map[string]any{
		"id":            "SHIP-1",
		"productName":   "Tomatoes",
		"quantity":      10,
		"unitOfMeasure": "kg",
		"farmerData":    farmerPayload("processor1"),
	}, farmer)
	resp.Body.Close()
	resp = api.post("/v1/shipments/SHIP-1/submit-certification", nil, farmer)
	resp.Body.Close()
	resp = api.post("/v1/shipments/SHIP-1/certification", map[string]any{"decision": "APPROVED"}, certifier)
	resp.Body.Close()
	resp = api.post("/v1/shipments/SHIP-1/process", map[string]any{
		"dateProcessed":               now,
		"processingType":              "washing",
		"destinationDistributorAlias": "distributor1",
	}, processor)
	resp.Body.Close()

	resp = api.post("/v1/shipments/SHIP-1/sensor-logs", map[string]any{
		"temperature": 4.5,
		"humidity":    82,
		"coordinates": map[string]any{"latitude": 52.1, "longitude": 4.3},
	}, distributor)
	sh := decode[trace.Shipment](t, resp)
	if sh.DistributorData == nil || len(sh.DistributorData.SensorLogs) != 1 {
		t.Fatalf("reading not recorded: %+v", sh.DistributorData)
	}

	resp = api.get("/v1/shipments/SHIP-1/sensor-logs", nil, distributor)
	logs := decode[struct {
		SensorLogs []trace.ColdChainLog `json:"sensorLogs"`
	}](t, resp)
	if len(logs.SensorLogs) != 1 || logs.SensorLogs[0].Temperature != 4.5 {
		t.Fatalf("unexpected logs: %+v", logs.SensorLogs)
	}

	resp = api.get("/v1/shipments/SHIP-1/sensor-logs", nil, farmer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("farmer read: expected 403, got %d", resp.StatusCode)
	}
}

func TestRecallEndpoints(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()
	farmer := api.registerParticipant(adminHeader, "farmer1", "farmer")

	for _, id := range []string{"SHIP-1", "SHIP-2"} {
		resp := api.post("/v1/shipments", map[string]any{
			"id":            id,
			"productName":   "Tomatoes",
			"quantity":      10,
			"unitOfMeasure": "kg",
			"farmerData":    farmerPayload(""),
		}, farmer)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %s: %d", id, resp.StatusCode)
		}
	}

	// Recall id is generated when omitted.
	resp := api.post("/v1/recalls", map[string]any{
		"shipmentId": "SHIP-1",
		"reason":     "contamination suspected",
	}, farmer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("recall status: %d", resp.StatusCode)
	}
	sh := decode[trace.Shipment](t, resp)
	if !sh.RecallInfo.IsRecalled || sh.RecallInfo.RecallID == "" {
		t.Fatalf("recall overlay missing: %+v", sh.RecallInfo)
	}
	recallID := sh.RecallInfo.RecallID

	// Related search is admin only.
	resp = api.get("/v1/recalls/related", url.Values{"shipment_id": {"SHIP-1"}}, farmer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("related as non-admin: expected 403, got %d", resp.StatusCode)
	}
	resp = api.get("/v1/recalls/related", url.Values{"shipment_id": {"SHIP-1"}}, adminHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("related status: %d", resp.StatusCode)
	}
	related := decode[struct {
		Related []trace.RelatedShipment `json:"related"`
	}](t, resp)
	if len(related.Related) != 1 || related.Related[0].Shipment.ID != "SHIP-2" {
		t.Fatalf("unexpected related set: %+v", related.Related)
	}

	resp = api.post("/v1/recalls/"+recallID+"/links", map[string]any{
		"primaryShipmentId": "SHIP-1",
		"linkedShipmentIds": []string{"SHIP-2"},
	}, adminHeader)
	sh = decode[trace.Shipment](t, resp)
	if len(sh.RecallInfo.LinkedShipmentIDs) != 1 {
		t.Fatalf("link not recorded: %+v", sh.RecallInfo)
	}
}

func TestActionableEndpoint(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()
	farmer := api.registerParticipant(adminHeader, "farmer1", "farmer")

	resp := api.post("/v1/shipments", map[string]any{
		"id":            "SHIP-1",
		"productName":   "Tomatoes",
		"quantity":      10,
		"unitOfMeasure": "kg",
		"farmerData":    farmerPayload(""),
	}, farmer)
	resp.Body.Close()

	resp = api.get("/v1/shipments/actionable", nil, farmer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("actionable status: %d", resp.StatusCode)
	}
	out := decode[struct {
		Shipments []trace.ActionableShipment `json:"shipments"`
	}](t, resp)
	if len(out.Shipments) != 1 || out.Shipments[0].Action != "SUBMIT_FOR_CERTIFICATION" {
		t.Fatalf("unexpected actionable set: %+v", out.Shipments)
	}
}

func TestListEndpointFilters(t *testing.T) {
	api := newTestAPI(t)
	adminHeader := api.bootstrapAdmin()
	farmer := api.registerParticipant(adminHeader, "farmer1", "farmer")

	for _, id := range []string{"SHIP-1", "SHIP-2", "SHIP-3"} {
		resp := api.post("/v1/shipments", map[string]any{
			"id":            id,
			"productName":   "Tomatoes",
			"quantity":      10,
			"unitOfMeasure": "kg",
			"farmerData":    farmerPayload(""),
		}, farmer)
		resp.Body.Close()
	}

	resp := api.get("/v1/shipments", url.Values{"page_size": {"2"}}, adminHeader)
	page := decode[trace.Page](t, resp)
	if page.FetchedCount != 2 || page.NextBookmark == "" {
		t.Fatalf("unexpected page: %+v", page)
	}

	resp = api.get("/v1/shipments", url.Values{"status": {"CREATED"}}, adminHeader)
	page = decode[trace.Page](t, resp)
	if page.FetchedCount != 3 {
		t.Fatalf("status filter: %+v", page)
	}

	resp = api.get("/v1/shipments", url.Values{"owner": {"farmer1"}, "status": {"CREATED"}}, adminHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mutually exclusive filters: expected 400, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/shipments", url.Values{"page_size": {"9999"}}, adminHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized page_size: expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = api.get("/readyz", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}

	resp = api.get("/openapi.yaml", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("openapi status: %d", resp.StatusCode)
	}
}
