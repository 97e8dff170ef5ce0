package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"financify/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+"/missing.json")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRow(t *testing.T) {
	assets := core.MustMoney("2234.56")
	r := core.Report{
		ID: 3, UserID: 1, Date: "2021-01",
		AssetIDs: []int64{1, 2}, LiabilityIDs: []int64{},
		NetWorth: core.MustMoney("2234.56"), AssetTotal: &assets,
	}

	got := Row(r, "2024-01-01T00:00:00Z")
	want := []any{int64(3), int64(1), "2021-01", "1;2;", "", "2234.56", "2234.56", "", "2024-01-01T00:00:00Z"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col %d = %v (%T), want %v (%T)", i, got[i], got[i], want[i], want[i])
		}
	}
}

type fakeSheets struct {
	mu       sync.Mutex
	existing [][]any
	appended [][]any
	ranges   []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(gsheet.ValueRange{Values: f.existing})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.ranges = append(f.ranges, r.URL.Path)
		f.appended = append(f.appended, vr.Values...)
		f.existing = append(f.existing, vr.Values...)
		w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected request", http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sid", ReportsSheet: "Reports"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestExportReports(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	first := []core.Report{{ID: 1, UserID: 1, Date: "2021-01", NetWorth: core.MustMoney("10")}}
	if err := c.ExportReports(ctx, first); err != nil {
		t.Fatalf("ExportReports: %v", err)
	}
	if len(fake.appended) != 2 {
		t.Fatalf("appended %d rows, want header + 1", len(fake.appended))
	}
	if fake.appended[0][0] != "id" {
		t.Errorf("first row should be the header, got %v", fake.appended[0])
	}
	if fake.appended[1][5] != "10.00" {
		t.Errorf("net worth cell = %v", fake.appended[1][5])
	}
	if !strings.Contains(fake.ranges[0], "sid") {
		t.Errorf("append path %q missing spreadsheet id", fake.ranges[0])
	}

	second := []core.Report{{ID: 2, UserID: 1, Date: "2021-02", NetWorth: core.MustMoney("-5.5")}}
	if err := c.ExportReports(ctx, second); err != nil {
		t.Fatalf("ExportReports: %v", err)
	}
	if len(fake.appended) != 3 {
		t.Fatalf("appended %d rows, want no second header", len(fake.appended))
	}
	if fake.appended[2][5] != "-5.50" {
		t.Errorf("net worth cell = %v", fake.appended[2][5])
	}
}

func TestExportReports_Empty(t *testing.T) {
	c := &Client{}
	if err := c.ExportReports(context.Background(), nil); err != nil {
		t.Errorf("empty export should be a no-op, got %v", err)
	}
	if err := c.ExportReports(context.Background(), []core.Report{{ID: 1}}); err == nil {
		t.Error("expected error without service")
	}
}
