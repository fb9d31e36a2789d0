package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bankverify/bankverify/internal/audit"
	"github.com/bankverify/bankverify/internal/config"
	"github.com/bankverify/bankverify/internal/logging"
	"github.com/bankverify/bankverify/internal/middleware"
)

const (
	adminEmail    = "admin@bank.test"
	adminPassword = "correct-horse"
)

func testConfig() config.Config {
	return config.Config{
		AppName:                "BankVerify",
		Env:                    "test",
		JWTSecret:              "access-secret",
		RefreshSecret:          "refresh-secret",
		JWTIssuer:              "bankverify",
		AccessTokenTTL:         15 * time.Minute,
		RefreshTokenTTL:        time.Hour,
		IdempotencyTTL:         time.Hour,
		SessionTTL:             time.Hour,
		BorrowerBaseURL:        "http://borrower.test",
		BootstrapAdminEmail:    adminEmail,
		BootstrapAdminPassword: adminPassword,
	}
}

func newApp(t *testing.T, withRedis bool) *fiber.App {
	t.Helper()
	deps := Deps{Cfg: testConfig(), Logger: logging.Discard(), AuditTrail: audit.NewMemoryRepository()}
	deps.Audit = auditTo(deps.AuditTrail)
	if withRedis {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		deps.Cache = client
	}
	app := fiber.New()
	if err := Setup(app, deps); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

// auditTo writes events straight to repo so tests can read them back synchronously.
func auditTo(repo audit.Repository) audit.Recorder {
	return syncRecorder{repo: repo}
}

type syncRecorder struct {
	repo audit.Repository
}

func (r syncRecorder) Record(ctx context.Context, event audit.Event) {
	_ = r.repo.SaveBatch(ctx, []audit.Event{event})
}

type request struct {
	method, path, body, token string
	headers                   map[string]string
}

func call(t *testing.T, app *fiber.App, r request) (int, map[string]any, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if r.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", r.method, r.path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, decoded, headers
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	status, body, _ := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/auth/login",
		body: `{"email":"` + email + `","password":"` + password + `"}`})
	if status != fiber.StatusOK {
		t.Fatalf("login %s: %d %v", email, status, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("missing access token in %v", body)
	}
	return token
}

func createVerification(t *testing.T, app *fiber.App, token string) map[string]any {
	t.Helper()
	status, body, _ := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/verifications", token: token,
		body: `{"customer":{"first_name":"Jane","last_name":"Doe","email":"jane@example.com"},"settings":{"send_method":"email","expiration_days":7}}`})
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	return body
}

func TestHealthAndPing(t *testing.T) {
	app := newApp(t, false)

	status, body, _ := call(t, app, request{method: fiber.MethodGet, path: "/healthz"})
	if status != fiber.StatusOK {
		t.Fatalf("healthz: %d %v", status, body)
	}
	status, body, headers := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/ping"})
	if status != fiber.StatusOK || body["status"] != "ok" {
		t.Fatalf("ping: %d %v", status, body)
	}
	if headers[middleware.RequestIDHeader] == "" || body["request_id"] != headers[middleware.RequestIDHeader] {
		t.Fatalf("request id not echoed: %v %v", headers, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newApp(t, false)

	status, _, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/verifications"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	status, _, _ = call(t, app, request{method: fiber.MethodGet, path: "/api/v1/verifications", token: "garbage"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
}

func TestAdminToBorrowerFlow(t *testing.T) {
	app := newApp(t, false)
	token := login(t, app, adminEmail, adminPassword)

	created := createVerification(t, app, token)
	id, _ := created["id"].(string)
	link, _ := created["link"].(string)
	if id == "" || !strings.HasPrefix(link, "http://borrower.test/verify/") {
		t.Fatalf("unexpected created body %v", created)
	}
	borrowerToken := link[strings.LastIndex(link, "/")+1:]

	status, state, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/borrower/verify/" + borrowerToken})
	if status != fiber.StatusOK || state["verification_id"] != id {
		t.Fatalf("validate: %d %v", status, state)
	}
	status, state, _ = call(t, app, request{method: fiber.MethodPost, path: "/api/v1/borrower/verify/" + borrowerToken + "/start"})
	if status != fiber.StatusOK || state["step"] != "customer-info" {
		t.Fatalf("start: %d %v", status, state)
	}

	status, got, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/verifications/" + id, token: token})
	if status != fiber.StatusOK || got["status"] != "in_progress" {
		t.Fatalf("get: %d %v", status, got)
	}

	status, trail, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/verifications/" + id + "/audit", token: token})
	if status != fiber.StatusOK {
		t.Fatalf("trail: %d %v", status, trail)
	}
	items, _ := trail["events"].([]any)
	if len(items) < 2 {
		t.Fatalf("expected created and started events, got %v", trail)
	}

	status, stats, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/dashboard/stats", token: token})
	if status != fiber.StatusOK || stats == nil {
		t.Fatalf("stats: %d %v", status, stats)
	}
}

func TestAgentPermissions(t *testing.T) {
	app := newApp(t, false)
	admin := login(t, app, adminEmail, adminPassword)

	status, body, _ := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/users", token: admin,
		body: `{"email":"agent@bank.test","name":"Agent","password":"agent-password","role":"agent"}`})
	if status != fiber.StatusCreated {
		t.Fatalf("create agent: %d %v", status, body)
	}
	agent := login(t, app, "agent@bank.test", "agent-password")

	if status, _, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/verifications", token: agent}); status != fiber.StatusOK {
		t.Fatalf("agent list verifications: %d", status)
	}
	if status, _, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/users", token: agent}); status != fiber.StatusForbidden {
		t.Fatalf("agent list users: expected 403, got %d", status)
	}
	if status, _, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/customers/cust_1001/profile", token: agent}); status != fiber.StatusForbidden {
		t.Fatalf("agent profile: expected 403, got %d", status)
	}
	status, profile, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/customers/cust_1001/profile", token: admin})
	if status != fiber.StatusOK || profile["customer_id"] != "cust_1001" {
		t.Fatalf("admin profile: %d %v", status, profile)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newApp(t, false)
	token := login(t, app, adminEmail, adminPassword)

	if status, _, _ := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/auth/logout", token: token}); status != fiber.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status, _, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/me", token: token}); status != fiber.StatusUnauthorized {
		t.Fatalf("expected revoked token, got %d", status)
	}
}

func TestIdempotentCreateReplays(t *testing.T) {
	app := newApp(t, true)
	token := login(t, app, adminEmail, adminPassword)

	body := `{"customer":{"first_name":"Jane","last_name":"Doe","email":"jane@example.com"},"settings":{"send_method":"link"}}`
	headers := map[string]string{middleware.IdempotencyKeyHeader: "create-1"}
	status, first, _ := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/verifications", token: token, body: body, headers: headers})
	if status != fiber.StatusCreated {
		t.Fatalf("first create: %d %v", status, first)
	}
	status, second, h := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/verifications", token: token, body: body, headers: headers})
	if status != fiber.StatusCreated || second["id"] != first["id"] {
		t.Fatalf("expected replay of %v, got %d %v", first["id"], status, second)
	}
	if h["Idempotent-Replayed"] == "" {
		t.Fatalf("expected replay header, got %v", h)
	}
}

func TestResendIsRateLimited(t *testing.T) {
	app := newApp(t, true)
	token := login(t, app, adminEmail, adminPassword)
	id, _ := createVerification(t, app, token)["id"].(string)

	for i := 0; i < resendMax; i++ {
		if status, body, _ := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/verifications/" + id + "/resend", token: token}); status != fiber.StatusOK {
			t.Fatalf("resend %d: %d %v", i, status, body)
		}
	}
	status, _, h := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/verifications/" + id + "/resend", token: token})
	if status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if h["Retry-After"] == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestUnimplementedFeatures(t *testing.T) {
	app := newApp(t, false)
	token := login(t, app, adminEmail, adminPassword)

	if status, _, _ := call(t, app, request{method: fiber.MethodPost, path: "/api/v1/verifications/bulk", token: token}); status != fiber.StatusNotImplemented {
		t.Fatalf("bulk: expected 501, got %d", status)
	}
	if status, _, _ := call(t, app, request{method: fiber.MethodGet, path: "/api/v1/reports/r-1/download", token: token}); status != fiber.StatusNotImplemented {
		t.Fatalf("report: expected 501, got %d", status)
	}
}

func TestSetupRequiresInfraOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	if err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()}); err == nil {
		t.Fatal("expected error without database")
	}
}
