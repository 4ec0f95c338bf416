//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	baseURL    string
	httpClient *http.Client
	db         *pgxpool.Pool
)

// Response types are defined locally to keep the tests black-box: no
// internal package imports.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Coupon  *struct {
		ID            string `json:"id"`
		Code          string `json:"code"`
		Name          string `json:"name"`
		DiscountType  string `json:"discountType"`
		Scope         string `json:"scope"`
		Status        string `json:"status"`
		RemainingUses *int   `json:"remainingUses"`
	} `json:"coupon"`
}

type computeResponse struct {
	OriginalTotal   string `json:"originalTotal"`
	DiscountedTotal string `json:"discountedTotal"`
	TotalDiscount   string `json:"totalDiscount"`
	Applied         []struct {
		Source        string `json:"source"`
		SourceID      string `json:"sourceId"`
		SourceName    string `json:"sourceName"`
		DiscountType  string `json:"discountType"`
		DiscountValue string `json:"discountValue"`
		Amount        string `json:"amount"`
		AppliedTo     string `json:"appliedTo"`
	} `json:"appliedDiscounts"`
	Errors []string `json:"errors"`
}

type usageResponse struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	SourceID   string `json:"sourceId"`
	CustomerID string `json:"customerId"`
	SaleID     string `json:"saleId"`
	Amount     string `json:"amount"`
	OrderTotal string `json:"orderTotal"`
	UsedAt     string `json:"usedAt"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}

	err = dc.
		WaitForService("api", wait.ForHTTP("/readyz").WithPort("8080/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	apiContainer, err := dc.ServiceContainer(ctx, "api")
	if err != nil {
		log.Fatalf("api container: %v", err)
	}
	host, err := apiContainer.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	apiPort, err := apiContainer.MappedPort(ctx, "8080/tcp")
	if err != nil {
		log.Fatalf("api port: %v", err)
	}

	baseURL = fmt.Sprintf("http://%s:%s", host, apiPort.Port())
	httpClient = &http.Client{Timeout: 10 * time.Second}
	log.Printf("API available at %s", baseURL)

	// Fixtures go straight into postgres through its published port.
	pgContainer, err := dc.ServiceContainer(ctx, "postgres")
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("postgres host: %v", err)
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://discount:discount@%s:%s/discount?sslmode=disable", pgHost, pgPort.Port())
	db, err = pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer db.Close()

	if err := insertFixtures(ctx); err != nil {
		log.Fatalf("insert fixtures: %v", err)
	}

	result := m.Run()

	stopTimeout := 30 * time.Second
	if err := apiContainer.Stop(ctx, &stopTimeout); err != nil {
		log.Printf("stop api container: %v", err)
	}
	if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
		log.Printf("compose down: %v", err)
	}

	return result
}

// insertFixtures creates a deterministic data set: no schedule gating, so
// assertions hold regardless of when the suite runs.
func insertFixtures(ctx context.Context) error {
	statements := []struct {
		name string
		sql  string
		args []any
	}{
		{
			name: "coupon TEST10",
			sql: `INSERT INTO coupons (code, name, discount_type, discount_value, scope, maximum_discount, max_uses_per_customer)
			      VALUES ('TEST10', 'Test 10%', 'percentage', 10, 'order', 25, 0)
			      ON CONFLICT (UPPER(code)) DO NOTHING`,
		},
		{
			name: "coupon LASTONE",
			sql: `INSERT INTO coupons (code, name, discount_type, discount_value, scope, max_uses, max_uses_per_customer)
			      VALUES ('LASTONE', 'Last one', 'fixed', 5, 'order', 1, 0)
			      ON CONFLICT (UPPER(code)) DO NOTHING`,
		},
		{
			name: "coupon MIN50",
			sql: `INSERT INTO coupons (code, name, discount_type, discount_value, scope, minimum_purchase, max_uses_per_customer)
			      VALUES ('MIN50', 'Big spender', 'fixed', 8, 'minimum', 50, 0)
			      ON CONFLICT (UPPER(code)) DO NOTHING`,
		},
		{
			name: "promotion ALWAYS5",
			sql: `INSERT INTO promotions (name, discount_type, discount_value, scope, valid_from, valid_until, priority, stackable)
			      SELECT 'Always 5', 'percentage', 5, 'order', now() - interval '1 day', now() + interval '30 days', 10, TRUE
			      WHERE NOT EXISTS (SELECT 1 FROM promotions WHERE name = 'Always 5')`,
		},
		{
			name: "promotion DISABLED",
			sql: `INSERT INTO promotions (name, discount_type, discount_value, scope, valid_from, valid_until, priority, stackable, is_active)
			      SELECT 'Disabled 50', 'percentage', 50, 'order', now() - interval '1 day', now() + interval '30 days', 90, FALSE, FALSE
			      WHERE NOT EXISTS (SELECT 1 FROM promotions WHERE name = 'Disabled 50')`,
		},
	}

	for _, st := range statements {
		if _, err := db.Exec(ctx, st.sql, st.args...); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
	}
	return nil
}

// HTTP helpers.

func doGet(t *testing.T, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func doPost(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, baseURL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}
