package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nfcescan/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, ScanTimeout: 2 * time.Second})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListReceiptsQuery(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeJSON(w, http.StatusOK, map[string]any{
			"total": 1,
			"notas": []map[string]any{{"id": 3, "estabelecimento": "PADARIA", "total": 12.5, "data_emissao": "2024-06-05", "itens": []any{}}},
		})
	})

	receipts, err := c.ListReceipts(context.Background(), ReceiptQuery{Limit: 100, Since: core.NewDate(2024, 6, 3)})
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	if len(receipts) != 1 || receipts[0].Vendor != "PADARIA" || receipts[0].Total.Cents != 1250 {
		t.Errorf("unexpected receipts %+v", receipts)
	}
	if got.URL.Path != "/notas" {
		t.Errorf("path = %s, want /notas", got.URL.Path)
	}
	q := got.URL.Query()
	if q.Get("limit") != "100" || q.Get("data_inicio") != "2024-06-03" {
		t.Errorf("query = %s", got.URL.RawQuery)
	}
	if q.Has("busca") || q.Has("data_fim") {
		t.Errorf("unexpected params in %s", got.URL.RawQuery)
	}
	if got.Header.Get(RequestIDHeader) == "" {
		t.Errorf("missing %s header", RequestIDHeader)
	}
}

func TestStatusErrorDetail(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantDetail string
		wantKind   string
	}{
		{"string detail", `{"detail":"Nota não encontrada"}`, "Nota não encontrada", ""},
		{"object detail", `{"detail":{"error":"invalid_url","message":"URL inválida"}}`, "URL inválida", "invalid_url"},
		{"plain body", `boom`, "boom", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			se := newStatusError("op", 404, []byte(tc.body))
			if se.Detail != tc.wantDetail || se.Kind != tc.wantKind {
				t.Errorf("got %+v", se)
			}
			if !errors.Is(se, ErrNotFound) {
				t.Errorf("404 should match ErrNotFound")
			}
		})
	}
}

func TestConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(Options{BaseURL: srv.URL, Timeout: time.Second})

	_, err := c.GetReceipt(context.Background(), 1)
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
}

func TestTimeoutIsConnectivity(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(release); srv.Close() })
	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := c.Stats(context.Background(), core.PeriodThisMonth.Range(core.NewDate(2024, 3, 15)))
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity on timeout, got %v", err)
	}
}

func TestScanClassification(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrNotReceipt},
		{http.StatusInternalServerError, ErrUpstreamUnavailable},
		{http.StatusBadGateway, ErrUpstreamUnavailable},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.code, map[string]any{"detail": map[string]string{"error": "x", "message": "y"}})
		})
		_, err := c.ScanURL(context.Background(), "https://www.sefaz.rs.gov.br/NFCE/NFCE-COM.aspx?p=1")
		if !errors.Is(err, tc.want) {
			t.Errorf("HTTP %d: got %v, want %v", tc.code, err, tc.want)
		}
		if StatusCode(err) != tc.code {
			t.Errorf("HTTP %d: StatusCode = %d", tc.code, StatusCode(err))
		}
	}
}

func TestScanSuccessKeepsCachedFlag(t *testing.T) {
	var gotURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.Query().Get("url")
		writeJSON(w, http.StatusOK, map[string]any{"id": 9, "estabelecimento": "X", "total": 1, "cached": true, "itens": []any{}})
	})
	const qr = "https://www.sefaz.rs.gov.br/NFCE/NFCE-COM.aspx?p=1|2|3"
	r, err := c.ScanURL(context.Background(), qr)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Cached || r.ID != 9 || gotURL != qr {
		t.Errorf("receipt %+v, url %q", r, gotURL)
	}
}

func TestCreateCategory(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Categoria 'Pets' já existe"})
		})
		_, err := c.CreateCategory(context.Background(), "Pets", "🐕", "#666666")
		if !errors.Is(err, ErrCategoryExists) {
			t.Fatalf("expected ErrCategoryExists, got %v", err)
		}
	})

	t.Run("created", func(t *testing.T) {
		var q map[string]string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s", r.Method)
			}
			q = map[string]string{"nome": r.URL.Query().Get("nome"), "icone": r.URL.Query().Get("icone"), "cor": r.URL.Query().Get("cor")}
			writeJSON(w, http.StatusOK, core.Category{ID: 12, Name: "Pets", Icon: "🐕", Color: "#666666"})
		})
		cat, err := c.CreateCategory(context.Background(), "Pets", "🐕", "#666666")
		if err != nil || cat.ID != 12 {
			t.Fatalf("CreateCategory = %+v, %v", cat, err)
		}
		if q["nome"] != "Pets" || q["icone"] != "🐕" || q["cor"] != "#666666" {
			t.Errorf("query = %v", q)
		}
	})
}

func TestListCategoriesCachedAndInvalidated(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(&hits, 1)
			writeJSON(w, http.StatusOK, core.CategoryList{Total: 1, Categories: []core.Category{{ID: 1, Name: "Outros"}}})
		case http.MethodPost:
			writeJSON(w, http.StatusOK, core.Category{ID: 2, Name: "Pets"})
		}
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ListCategories(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if _, err := c.ListCategories(ctx); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&hits); n < 1 || n > 5 {
		t.Fatalf("hits = %d", n)
	}
	before := atomic.LoadInt32(&hits)

	cats, _ := c.ListCategories(ctx)
	cats[0].Name = "mutated"
	again, _ := c.ListCategories(ctx)
	if again[0].Name != "Outros" {
		t.Errorf("cached slice was mutated through a returned copy")
	}
	if atomic.LoadInt32(&hits) != before {
		t.Errorf("fresh cache should not refetch")
	}

	if _, err := c.CreateCategory(ctx, "Pets", "🐕", "#666666"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ListCategories(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != before+1 {
		t.Errorf("create should invalidate the category cache")
	}
}

func TestRenameVendorAndManualEntry(t *testing.T) {
	var manualBody core.ManualEntry
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/estabelecimento/renomear":
			if r.URL.Query().Get("nome_atual") != "ARCOS DOURADOS LTDA" || r.URL.Query().Get("novo_nome") != "McDonald's" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, core.RenameResult{Updated: 4})
		case "/notas/manual":
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, &manualBody); err != nil {
				t.Errorf("body %s: %v", raw, err)
			}
			writeJSON(w, http.StatusOK, core.ManualResult{Success: true, Items: 1, Total: core.Money{Cents: 998}})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	n, err := c.RenameVendor(ctx, "ARCOS DOURADOS LTDA", "McDonald's")
	if err != nil || n != 4 {
		t.Fatalf("RenameVendor = %d, %v", n, err)
	}

	entry := core.ManualEntry{
		Vendor:    core.ManualVendorFallback,
		IssueDate: core.NewDate(2024, 6, 10),
		Items:     []core.ManualItem{{Name: "LEITE", Quantity: 2, Value: core.Money{Cents: 499}, CategoryID: 3}},
	}
	res, err := c.CreateManualReceipt(ctx, entry)
	if err != nil || !res.Success || res.Total.Cents != 998 {
		t.Fatalf("CreateManualReceipt = %+v, %v", res, err)
	}
	if manualBody.Vendor != core.ManualVendorFallback || manualBody.IssueDate != entry.IssueDate || manualBody.Items[0].Value.Cents != 499 {
		t.Errorf("server saw %+v", manualBody)
	}
}

func TestDashboardAndDrillDownParams(t *testing.T) {
	seen := map[string]string{}
	var mu sync.Mutex
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.URL.RawQuery
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	ctx := context.Background()
	rng := core.PeriodThisMonth.Range(core.NewDate(2024, 3, 15))

	if _, err := c.CategorySummary(ctx, rng); err != nil {
		t.Fatal(err)
	}
	if _, err := c.TopVendors(ctx, rng, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ItemsByCategory(ctx, 7, rng); err != nil {
		t.Fatal(err)
	}
	b, err := c.ItemsByVendor(ctx, "PADARIA & CIA", rng)
	if err != nil {
		t.Fatal(err)
	}
	if b.Vendor != "PADARIA & CIA" {
		t.Errorf("vendor header not filled: %+v", b)
	}

	want := map[string]string{
		"/dashboard/resumo":       "data_fim=2024-04-01&data_inicio=2024-03-01",
		"/dashboard/fornecedores": "data_fim=2024-04-01&data_inicio=2024-03-01&limit=5",
		"/itens/categoria/7":      "data_fim=2024-04-01&data_inicio=2024-03-01",
		"/itens/fornecedor":       "data_fim=2024-04-01&data_inicio=2024-03-01&estabelecimento=PADARIA+%26+CIA",
	}
	for path, q := range want {
		if seen[path] != q {
			t.Errorf("%s query = %q, want %q", path, seen[path], q)
		}
	}
}

func TestListCategoriesSharedFlightSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		writeJSON(w, http.StatusOK, core.CategoryList{Total: 1, Categories: []core.Category{{ID: 1, Name: "Outros"}}})
	})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.ListCategories(firstCtx)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan error, 1)
	var cats []core.Category
	go func() {
		var err error
		cats, err = c.ListCategories(context.Background())
		secondDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-secondDone; err != nil {
		t.Fatalf("second caller failed after first cancelled: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Outros" {
		t.Errorf("categories = %+v", cats)
	}
	<-firstDone
}
