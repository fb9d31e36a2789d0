package profile

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryRepository(SampleProfiles(now)...))
	svc.now = func() time.Time { return now }
	h := NewHandler(svc)
	app := fiber.New()
	app.Get("/customers/:id/profile", h.Profile)
	app.Get("/customers/:id/cashflow", h.Cashflow)
	app.Get("/customers/:id/spending", h.Spending)
	app.Get("/customers/:id/income", h.Income)
	app.Get("/customers/:id/transactions", h.Transactions)
	app.Get("/customers/:id/accounts", h.Accounts)
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded
}

func TestHandlerProfileTabs(t *testing.T) {
	app := setupApp(t)

	status, body := get(t, app, "/customers/cust_1001/profile")
	overview, _ := body["overview"].(map[string]any)
	if status != fiber.StatusOK || body["name"] != "Jane Doe" || overview["account_count"] != float64(2) {
		t.Fatalf("profile: %d %v", status, body)
	}
	score, _ := overview["credit_score"].(map[string]any)
	if score["band"] != BandVeryGood {
		t.Fatalf("unexpected credit score %v", score)
	}

	status, body = get(t, app, "/customers/cust_1001/cashflow")
	if months, _ := body["months"].([]any); status != fiber.StatusOK || len(months) < 3 {
		t.Fatalf("cashflow: %d %v", status, body)
	}
	status, body = get(t, app, "/customers/cust_1001/spending")
	categories, _ := body["categories"].([]any)
	if status != fiber.StatusOK || len(categories) == 0 {
		t.Fatalf("spending: %d %v", status, body)
	}
	if top, _ := categories[0].(map[string]any); top["category"] != "housing" {
		t.Fatalf("expected housing to lead spending, got %v", categories[0])
	}
	status, body = get(t, app, "/customers/cust_1001/income")
	if sources, _ := body["sources"].([]any); status != fiber.StatusOK || len(sources) != 1 {
		t.Fatalf("income: %d %v", status, body)
	}
	status, body = get(t, app, "/customers/cust_1001/transactions?page_size=5&account_id=cust_1001_chk")
	if items, _ := body["items"].([]any); status != fiber.StatusOK || len(items) != 5 || body["page_size"] != float64(5) {
		t.Fatalf("transactions: %d %v", status, body)
	}
	status, body = get(t, app, "/customers/cust_1001/accounts?days=14")
	if trend, _ := body["balance_trend"].([]any); status != fiber.StatusOK || len(trend) != 14 {
		t.Fatalf("accounts: %d %v", status, body)
	}
}

func TestHandlerProfileErrors(t *testing.T) {
	app := setupApp(t)
	if status, _ := get(t, app, "/customers/nobody/profile"); status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status, _ := get(t, app, "/customers/cust_1001/transactions?page=abc"); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}
