package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"mailpoint.org/internal/address"
	"mailpoint.org/internal/authz"
	"mailpoint.org/internal/registry"
	"mailpoint.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("MAILPOINT_STAFF_SECRET", "test-secret")
	authz.ResetSecretForTests()
	t.Cleanup(authz.ResetSecretForTests)

	svc := registry.NewService(registry.NewInMemory())
	api := New(ReadyProbe{}, "test", svc, stream.New())
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

func (c *apiClient) token(level authz.Level, prefix string, override bool) string {
	c.t.Helper()
	tok, err := authz.GenerateToken(authz.AuthorityProfile{
		ActorID:           "staff-test",
		Level:             level,
		AssignedPrefix:    address.Prefix(prefix),
		Status:            authz.StatusActive,
		NamespaceOverride: override,
	}, time.Minute)
	if err != nil {
		c.t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, token string) *http.Response {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
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

func TestHealthAndInfoArePublic(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["service"] != "mailpoint-api" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = c.get("/v1/info", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPointsRequireAuthentication(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/points", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/points", nil, "not-a-token")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPointLifecycleOverHTTP(t *testing.T) {
	c := newTestAPI(t)
	lead := c.token(authz.LevelZoneLead, "CS01A", false)

	resp := c.do(http.MethodPost, "/v1/points", map[string]any{
		"code":        "CS01A07",
		"region_name": "Campus South",
		"zone_name":   "Block A",
		"point_name":  "Box 07",
		"type":        "mailbox",
	}, lead)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	created := decode[registry.DeliveryPoint](t, resp)
	if created.Code.String() != "CS01A07" || created.Version != 1 {
		t.Fatalf("unexpected created point: %#v", created)
	}

	resp = c.do(http.MethodPost, "/v1/points/CS01A07/occupant", map[string]any{
		"occupant_id":   "stu-42",
		"occupant_name": "Jordan Lee",
		"version":       created.Version,
	}, lead)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign status: %d", resp.StatusCode)
	}
	occupied := decode[registry.DeliveryPoint](t, resp)
	if !occupied.Occupied() || occupied.Version != 2 {
		t.Fatalf("unexpected occupied point: %#v", occupied)
	}

	// Re-assign against the stale version is rejected.
	resp = c.do(http.MethodPost, "/v1/points/CS01A07/occupant", map[string]any{
		"occupant_id": "stu-43",
		"version":     created.Version,
	}, lead)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for occupied point, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodDelete, "/v1/points/CS01A07/occupant?version=2", nil, lead)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vacate status: %d", resp.StatusCode)
	}
	vacated := decode[registry.DeliveryPoint](t, resp)
	if vacated.Occupied() {
		t.Fatalf("expected vacant point, got %#v", vacated)
	}

	resp = c.do(http.MethodPost, "/v1/points/CS01A07/active", map[string]any{
		"active":  false,
		"version": vacated.Version,
	}, lead)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set active status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodDelete, "/v1/points/CS01A07", nil, lead)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/points/CS01A07", nil, lead)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStaleVersionMapsToPreconditionFailed(t *testing.T) {
	c := newTestAPI(t)
	lead := c.token(authz.LevelZoneLead, "CS01A", false)

	resp := c.do(http.MethodPost, "/v1/points", map[string]any{
		"code": "CS01A07", "type": "mailbox",
	}, lead)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/points/CS01A07/active", map[string]any{
		"active":  false,
		"version": 99,
	}, lead)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 for stale version, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCourierCannotCreate(t *testing.T) {
	c := newTestAPI(t)
	courier := c.token(authz.LevelCourier, "CS01A", false)

	resp := c.do(http.MethodPost, "/v1/points", map[string]any{
		"code": "CS01A07", "type": "mailbox",
	}, courier)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["reason"] != "capability_not_granted" {
		t.Fatalf("unexpected denial payload: %v", body)
	}
}

func TestQueryScopedToPrefix(t *testing.T) {
	c := newTestAPI(t)
	manager := c.token(authz.LevelAreaManager, "CS01", false)

	for _, code := range []string{"CS01A01", "CS01A02", "CS01B01"} {
		resp := c.do(http.MethodPost, "/v1/points", map[string]any{
			"code": code, "type": "dormitory",
		}, manager)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %s status: %d", code, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := c.get("/v1/points", url.Values{"prefix": {"CS01A"}}, manager)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query status: %d", resp.StatusCode)
	}
	page := decode[registry.Page](t, resp)
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 points under CS01A, got %d", len(page.Items))
	}

	// Querying outside the assigned prefix is denied.
	resp = c.get("/v1/points", url.Values{"prefix": {"CS02"}}, manager)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 outside scope, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProvisionBatchOverHTTP(t *testing.T) {
	c := newTestAPI(t)
	manager := c.token(authz.LevelAreaManager, "CS01", false)

	resp := c.do(http.MethodPost, "/v1/provision", map[string]any{
		"zone_prefix":      "CS01A",
		"floor_start":      1,
		"floor_end":        2,
		"points_per_floor": 3,
		"scheme":           "floorRoom",
		"type":             "dormitory",
		"region_name":      "Campus South",
		"zone_name":        "Block A",
	}, manager)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("provision status: %d", resp.StatusCode)
	}
	out := decode[provisionResponse](t, resp)
	if out.Count != 6 {
		t.Fatalf("expected 6 provisioned points, got %d", out.Count)
	}
	want := []string{"CS01A11", "CS01A12", "CS01A13", "CS01A21", "CS01A22", "CS01A23"}
	for i, p := range out.Items {
		if p.Code.String() != want[i] {
			t.Fatalf("item %d: got %s, want %s", i, p.Code, want[i])
		}
	}

	// Overlapping re-provision collides and reports the duplicates.
	resp = c.do(http.MethodPost, "/v1/provision", map[string]any{
		"zone_prefix":      "CS01A",
		"floor_start":      2,
		"floor_end":        2,
		"points_per_floor": 3,
		"scheme":           "floorRoom",
		"type":             "dormitory",
	}, manager)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for overlap, got %d", resp.StatusCode)
	}
	conflict := decode[map[string]any](t, resp)
	if conflict["colliding_codes"] == nil {
		t.Fatalf("expected colliding codes in payload: %v", conflict)
	}

	// Zone leads cannot provision.
	lead := c.token(authz.LevelZoneLead, "CS01A", false)
	resp = c.do(http.MethodPost, "/v1/provision", map[string]any{
		"zone_prefix":      "CS01A",
		"floor_start":      3,
		"floor_end":        3,
		"points_per_floor": 1,
		"scheme":           "floorRoom",
		"type":             "dormitory",
	}, lead)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for zone lead, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMalformedCodeRejected(t *testing.T) {
	c := newTestAPI(t)
	admin := c.token(authz.LevelRegionCoordinator, "", true)

	resp := c.do(http.MethodPost, "/v1/points", map[string]any{
		"code": "cs-1a07", "type": "mailbox",
	}, admin)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed code, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnknownFieldRejected(t *testing.T) {
	c := newTestAPI(t)
	lead := c.token(authz.LevelZoneLead, "CS01A", false)

	resp := c.do(http.MethodPost, "/v1/points", map[string]any{
		"code": "CS01A07", "type": "mailbox", "bogus": true,
	}, lead)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
