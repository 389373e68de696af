package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database/dbtest"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	"github.com/Additional-Code/orderdesk/internal/migration"
	"github.com/Additional-Code/orderdesk/internal/presentation/http/response"
	"github.com/Additional-Code/orderdesk/internal/presentation/http/validation"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	service "github.com/Additional-Code/orderdesk/internal/service/order"
)

//
// ---------- FIXTURE ----------
//

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, error)              { return nil, cache.ErrCacheMiss }
func (nopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nopCache) Delete(context.Context, ...string) error                  { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, []byte, []byte, map[string]string) error { return nil }
func (nopPublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (nopPublisher) Topic() string { return "" }

// newTestServer wires the full stack over a freshly migrated in-memory database.
func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	conns := dbtest.Open(t)
	if _, err := migration.New(conns, zap.NewNop()).Upgrade(context.Background()); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	svc := service.NewService(service.Params{
		Repository: repo.NewRepository(conns),
		Cache:      nopCache{},
		Config:     config.Config{},
		Logger:     zap.NewNop(),
		Publisher:  nopPublisher{},
	})

	e := echo.New()
	e.Validator = validation.New()
	Register(e, NewHandler(svc))
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, want, rec.Body.String())
	}
}

//
// ---------- TESTS ----------
//

const eveOrder = `{"order_number":"ORD-2001","customer_name":"Eve","order_date":"2026-03-01T00:00:00","status":"Pending","total_amount":99.99,"payment_status":"Unpaid"}`

func TestCreateGetDeleteScenario(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/orders", eveOrder)
	expectStatus(t, rec, http.StatusCreated)
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/orders/5" {
		t.Fatalf("Location = %q, want /orders/5", loc)
	}
	created := decode[dto.OrderResponse](t, rec)
	want := dto.OrderResponse{
		ID:            5,
		OrderNumber:   "ORD-2001",
		CustomerName:  "Eve",
		OrderDate:     "2026-03-01T00:00:00",
		Status:        "Pending",
		TotalAmount:   99.99,
		PaymentStatus: "Unpaid",
	}
	if created != want {
		t.Fatalf("created = %+v, want %+v", created, want)
	}

	rec = do(t, e, http.MethodGet, "/orders/5", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[dto.OrderResponse](t, rec); got != want {
		t.Fatalf("GET = %+v, want %+v", got, want)
	}

	rec = do(t, e, http.MethodDelete, "/orders/5", "")
	expectStatus(t, rec, http.StatusNoContent)
	if rec.Body.Len() != 0 {
		t.Fatalf("delete body = %q, want empty", rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, "/orders/5", "")
	expectStatus(t, rec, http.StatusNotFound)
	if body := decode[response.ErrorBody](t, rec); body.Detail != "Order not found" {
		t.Fatalf("detail = %q, want %q", body.Detail, "Order not found")
	}
}

func TestCreateValidation(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing fields", body: `{"order_number":"ORD-9"}`},
		{name: "wrong type", body: `{"order_number":"ORD-9","customer_name":"A","order_date":"d","status":"s","total_amount":"lots","payment_status":"p"}`},
		{name: "not json", body: `order_number=ORD-9`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, "/orders", tt.body)
			expectStatus(t, rec, http.StatusUnprocessableEntity)
			if body := decode[response.ErrorBody](t, rec); body.Kind != "unprocessable_entity" {
				t.Fatalf("kind = %q, want unprocessable_entity", body.Kind)
			}
		})
	}

	rec := do(t, e, http.MethodGet, "/orders?limit=100", "")
	if got := decode[dto.OrderListResponse](t, rec); got.Count != 4 {
		t.Fatalf("count = %d, want 4 (no row added)", got.Count)
	}
}

func TestCreateDuplicateOrderNumber(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPost, "/orders", strings.Replace(eveOrder, "ORD-2001", "ORD-1001", 1))
	expectStatus(t, rec, http.StatusInternalServerError)
	body := decode[response.ErrorBody](t, rec)
	if !strings.HasPrefix(body.Detail, "Database error: ") {
		t.Fatalf("detail = %q, want Database error prefix", body.Detail)
	}
	if body.Details["reason"] != "constraint_violation" {
		t.Fatalf("details = %v, want constraint_violation", body.Details)
	}
}

func TestList(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		target string
		status int
		want   []string
	}{
		{name: "defaults", target: "/orders", status: http.StatusOK, want: []string{"ORD-1001", "ORD-1002", "ORD-1003", "ORD-1004"}},
		{name: "status filter", target: "/orders?status=Pending", status: http.StatusOK, want: []string{"ORD-1001", "ORD-1004"}},
		{name: "empty status ignored", target: "/orders?status=", status: http.StatusOK, want: []string{"ORD-1001", "ORD-1002", "ORD-1003", "ORD-1004"}},
		{name: "paged", target: "/orders?limit=1&offset=2", status: http.StatusOK, want: []string{"ORD-1003"}},
		{name: "bad limit", target: "/orders?limit=ten", status: http.StatusUnprocessableEntity},
		{name: "negative offset", target: "/orders?offset=-1", status: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodGet, tt.target, "")
			expectStatus(t, rec, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			got := decode[dto.OrderListResponse](t, rec)
			if got.Count != len(tt.want) || len(got.Orders) != len(tt.want) {
				t.Fatalf("count = %d, orders = %d, want %d", got.Count, len(got.Orders), len(tt.want))
			}
			for i, o := range got.Orders {
				if o.OrderNumber != tt.want[i] {
					t.Fatalf("orders[%d] = %q, want %q", i, o.OrderNumber, tt.want[i])
				}
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodGet, "/orders/2", "")
	before := decode[dto.OrderResponse](t, rec)

	rec = do(t, e, http.MethodPut, "/orders/2", `{}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[dto.OrderResponse](t, rec); got != before {
		t.Fatalf("empty update = %+v, want %+v", got, before)
	}

	rec = do(t, e, http.MethodPut, "/orders/2", `{"status":"Refunded","customer_avatar":"a.png"}`)
	expectStatus(t, rec, http.StatusOK)
	want := before
	want.Status = "Refunded"
	want.CustomerAvatar = "a.png"
	if got := decode[dto.OrderResponse](t, rec); got != want {
		t.Fatalf("update = %+v, want %+v", got, want)
	}

	rec = do(t, e, http.MethodPut, "/orders/404", `{"status":"Refunded"}`)
	expectStatus(t, rec, http.StatusNotFound)

	rec = do(t, e, http.MethodPut, "/orders/abc", `{"status":"Refunded"}`)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestDeleteMissing(t *testing.T) {
	e := newTestServer(t)

	expectStatus(t, do(t, e, http.MethodDelete, "/orders/404", ""), http.StatusNotFound)
	expectStatus(t, do(t, e, http.MethodGet, "/orders/x", ""), http.StatusUnprocessableEntity)
}

func TestBulkEndpoints(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, http.MethodPut, "/orders/bulk/status", `{"ids":[1,4,99],"status":"Completed"}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[dto.BulkUpdatedResponse](t, rec); got.Updated != 2 {
		t.Fatalf("updated = %d, want 2", got.Updated)
	}

	rec = do(t, e, http.MethodPut, "/orders/bulk/status", `{"ids":[],"status":"Completed"}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[dto.BulkUpdatedResponse](t, rec); got.Updated != 0 {
		t.Fatalf("updated = %d, want 0", got.Updated)
	}

	expectStatus(t, do(t, e, http.MethodPut, "/orders/bulk/status", `{"ids":[1]}`), http.StatusUnprocessableEntity)

	rec = do(t, e, http.MethodPost, "/orders/bulk/duplicate", `{"ids":[2,77]}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[dto.BulkDuplicatedResponse](t, rec); len(got.DuplicatedIDs) != 1 || got.DuplicatedIDs[0] != 5 {
		t.Fatalf("duplicated_ids = %v, want [5]", got.DuplicatedIDs)
	}

	rec = do(t, e, http.MethodPost, "/orders/bulk/duplicate", `{"ids":[77]}`)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"duplicated_ids":[]`) {
		t.Fatalf("body = %s, want empty duplicated_ids array", rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/orders/bulk/duplicate", `{"ids":[2]}`)
	expectStatus(t, rec, http.StatusInternalServerError)

	rec = do(t, e, http.MethodGet, "/orders/5", "")
	if got := decode[dto.OrderResponse](t, rec); got.OrderNumber != "ORD-1002-COPY" {
		t.Fatalf("copy order_number = %q, want ORD-1002-COPY", got.OrderNumber)
	}

	expectStatus(t, do(t, e, http.MethodDelete, "/orders/bulk", `{}`), http.StatusUnprocessableEntity)

	rec = do(t, e, http.MethodDelete, "/orders/bulk", `{"ids":[1,2,5,300]}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[dto.BulkDeletedResponse](t, rec); got.Deleted != 3 {
		t.Fatalf("deleted = %d, want 3", got.Deleted)
	}

	rec = do(t, e, http.MethodGet, "/orders/stats", "")
	expectStatus(t, rec, http.StatusOK)
	stats := decode[dto.OrderStatsResponse](t, rec)
	if stats.Total != 2 || stats.ByStatus["Completed"] != 1 || stats.ByStatus["Refunded"] != 1 {
		t.Fatalf("stats = %+v, want 2 orders (1 Completed, 1 Refunded)", stats)
	}
}
