package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"kcal/internal/core"
	"kcal/internal/estimate"
	"kcal/internal/ledger"
	"kcal/internal/services"
	"kcal/internal/storage"
)

type fakeEstimator struct {
	err error
}

func (f *fakeEstimator) EstimateText(ctx context.Context, text string) (estimate.Estimate, error) {
	if f.err != nil {
		return estimate.Estimate{}, f.err
	}
	item := estimate.Resolve(estimate.FoodItem{Name: text, Grams: 200}, estimate.DefaultProfile, estimate.SourceDefault)
	entry, err := estimate.Composite([]estimate.ResolvedItem{item})
	return estimate.Estimate{Entry: entry, Items: []estimate.ResolvedItem{item}}, err
}

func (f *fakeEstimator) ScanLabel(ctx context.Context, img estimate.Image) (estimate.LabelScan, error) {
	return estimate.LabelScan{Product: "Granola", Per: "100g", Kcal: 450, Carbs: 60, Protein: 10, Fat: 18}, nil
}

func (f *fakeEstimator) FindFood(ctx context.Context, term string) (estimate.FoodMatch, error) {
	if strings.EqualFold(term, "banana") {
		return estimate.FoodMatch{Name: "Banana", Brand: "OpenFoodFacts", Per100g: core.Nutrients{Calories: 89}}, nil
	}
	return estimate.FoodMatch{}, core.ErrNotFound
}

const testDay = "2024-03-10"

func newTestJournal(t *testing.T, est services.Estimator) *services.Journal {
	t.Helper()
	ctx := context.Background()
	docs := storage.NewMemoryStore()
	store, _, err := ledger.Open(ctx, docs)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	goals, err := ledger.OpenGoals(ctx, docs)
	if err != nil {
		t.Fatalf("open goals: %v", err)
	}
	catalog, err := ledger.OpenCatalog(ctx, docs)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	j := services.NewJournal(services.JournalConfig{
		Ledger:    store,
		Goals:     goals,
		Catalog:   catalog,
		Estimator: est,
		Calendar:  core.NewCalendar(time.UTC).WithClock(func() time.Time { return now }),
	})
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func newServerWith(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.RateLimitRPS == 0 {
		deps.RateLimitRPS = 1000
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func newTestServer(t *testing.T, est services.Estimator, ready func(context.Context) error) *Server {
	t.Helper()
	return newServerWith(t, Deps{Journal: newTestJournal(t, est), Ready: ready})
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, rr.Body.String())
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}

	down := newTestServer(t, &fakeEstimator{}, func(context.Context) error { return errors.New("db gone") })
	rr := do(t, down, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing store = %d, want 503", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "db gone") {
		t.Error("readiness body must not leak store errors")
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)
	rr := do(t, srv, http.MethodGet, "/api/goals", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	if rr := do(t, srv, http.MethodGet, "/api/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint = %d, want 404", rr.Code)
	}
}

func TestManualEntryDayAndDelete(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)

	rr := do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries",
		`{"category":"breakfast","label":"Toast","calories":250.4,"carbs":30}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("manual status = %d: %s", rr.Code, rr.Body.String())
	}
	logged := decode[services.Logged](t, rr)
	if logged.Entry.ID == "" || logged.Entry.Brand != estimate.SourceManual {
		t.Errorf("logged entry = %+v", logged.Entry)
	}

	rr = do(t, srv, http.MethodGet, "/api/days/"+testDay, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("day status = %d", rr.Code)
	}
	day := decode[dayResponse](t, rr)
	if day.Summary.EntryCount != 1 || day.Rounded.Calories != 250 {
		t.Errorf("day summary = %+v rounded = %+v", day.Summary, day.Rounded)
	}

	path := "/api/days/" + testDay + "/entries/" + string(logged.Entry.ID)
	if rr := do(t, srv, http.MethodDelete, path, ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rr.Code)
	}
}

func TestDeleteAtIndex(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)
	for _, label := range []string{"Apple", "Pear"} {
		do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries",
			`{"category":"other","label":"`+label+`","calories":50}`)
	}

	rr := do(t, srv, http.MethodDelete, "/api/days/"+testDay+"/categories/other/0", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete at status = %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[deleteResponse](t, rr)
	if got.Removed.Label != "Apple" || got.Day.EntryCount != 1 {
		t.Errorf("delete at = %+v", got)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/days/" + testDay + "/categories/other/5", http.StatusNotFound},
		{"/api/days/" + testDay + "/categories/other/-1", http.StatusBadRequest},
		{"/api/days/" + testDay + "/categories/snack/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rr := do(t, srv, http.MethodDelete, tt.path, ""); rr.Code != tt.want {
			t.Errorf("DELETE %s = %d, want %d", tt.path, rr.Code, tt.want)
		}
	}
}

func TestInputValidation(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)
	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		wantField string
	}{
		{"bad date", http.MethodGet, "/api/days/2024-02-30", "", ""},
		{"bad category", http.MethodPost, "/api/days/" + testDay + "/entries/text", `{"category":"snack","text":"x"}`, ""},
		{"empty text", http.MethodPost, "/api/days/" + testDay + "/entries/text", `{"category":"lunch","text":"  "}`, "text"},
		{"missing calories", http.MethodPost, "/api/days/" + testDay + "/entries", `{"category":"lunch","label":"Soup"}`, "calories"},
		{"malformed body", http.MethodPost, "/api/days/" + testDay + "/entries", `{"category":`, "body"},
		{"bad month", http.MethodGet, "/api/calendar?year=2024&month=13", "", "month"},
		{"empty search", http.MethodGet, "/api/foods/search?q=", "", "q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body.String())
			}
			body := decode[ErrorBody](t, rr)
			if body.Error.Code != CodeInvalidRequest || body.Error.Field != tt.wantField {
				t.Errorf("error = %+v, want field %q", body.Error, tt.wantField)
			}
		})
	}
}

func TestTextEntryAndPreview(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)

	rr := do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/text",
		`{"category":"lunch","text":"arroz con pollo"}`, SessionHeader, "tab-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("text status = %d: %s", rr.Code, rr.Body.String())
	}
	logged := decode[services.Logged](t, rr)
	if logged.Entry.Calories != 200 || len(logged.Items) != 1 || logged.Category != core.Lunch {
		t.Errorf("logged = %+v", logged)
	}

	rr = do(t, srv, http.MethodGet, "/api/dialogs/tab-1/preview", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status = %d", rr.Code)
	}
	if p := decode[services.Preview](t, rr); p.Entry.ID != logged.Entry.ID {
		t.Errorf("preview entry = %s, want %s", p.Entry.ID, logged.Entry.ID)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/dialogs/tab-1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("dismiss status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/dialogs/tab-1/preview", ""); rr.Code != http.StatusNotFound {
		t.Errorf("preview after dismiss = %d, want 404", rr.Code)
	}
}

func TestTextEntryEstimationFailure(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{err: core.InterpretationError("model unreachable", nil)}, nil)
	rr := do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/text", `{"category":"dinner","text":"pizza"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if body := decode[ErrorBody](t, rr); body.Error.Code != CodeEstimation {
		t.Errorf("code = %q", body.Error.Code)
	}
	day := decode[dayResponse](t, do(t, srv, http.MethodGet, "/api/days/"+testDay, ""))
	if day.Summary.HasData {
		t.Error("failed estimation must not append")
	}
}

func TestCalendarInvalidatedOnWrite(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)

	view := decode[core.MonthView](t, do(t, srv, http.MethodGet, "/api/calendar?year=2024&month=3", ""))
	if view.Logged != 0 || len(view.Days) != 31 || !view.Days[9].Today {
		t.Fatalf("initial view = %+v", view)
	}

	do(t, srv, http.MethodPost, "/api/days/2024-03-22/entries", `{"category":"dinner","label":"Soup","calories":180}`)

	view = decode[core.MonthView](t, do(t, srv, http.MethodGet, "/api/calendar?year=2024&month=3", ""))
	if view.Logged != 1 || !view.Days[21].HasData || view.Days[21].Calories != 180 {
		t.Errorf("view after write = logged %d, day22 %+v", view.Logged, view.Days[21])
	}

	// Defaults to the month containing today.
	view = decode[core.MonthView](t, do(t, srv, http.MethodGet, "/api/calendar", ""))
	if view.Year != 2024 || view.Month != 3 {
		t.Errorf("default month = %d-%d", view.Year, view.Month)
	}
}

func TestGoals(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)
	if g := decode[core.Goals](t, do(t, srv, http.MethodGet, "/api/goals", "")); g != core.DefaultGoals() {
		t.Errorf("initial goals = %+v", g)
	}

	rr := do(t, srv, http.MethodPut, "/api/goals", `{"calories":1800,"carbs":"abc","protein":"-5","fat":"70.9"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put goals = %d: %s", rr.Code, rr.Body.String())
	}
	want := core.Goals{Calories: 1800, Carbs: 250, Protein: 100, Fat: 70}
	if g := decode[core.Goals](t, rr); g != want {
		t.Errorf("goals = %+v, want %+v", g, want)
	}
}

func TestProductsAndSavedEntry(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)

	rr := do(t, srv, http.MethodPost, "/api/products", `{"product":"Granola","kcal":450,"carbs":60,"protein":10,"fat":18}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add product = %d: %s", rr.Code, rr.Body.String())
	}
	p := decode[core.Product](t, rr)
	if p.ID == "" || p.Per != core.DefaultPer {
		t.Errorf("product = %+v", p)
	}
	if rr := do(t, srv, http.MethodPost, "/api/products", `{"product":" granola ","kcal":1}`); rr.Code != http.StatusConflict {
		t.Errorf("duplicate product = %d, want 409", rr.Code)
	}
	if list := decode[[]core.Product](t, do(t, srv, http.MethodGet, "/api/products", "")); len(list) != 1 {
		t.Errorf("products = %d, want 1", len(list))
	}

	rr = do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/saved",
		`{"category":"breakfast","product_id":"`+p.ID+`","grams":"50g"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("saved entry = %d: %s", rr.Code, rr.Body.String())
	}
	if logged := decode[services.Logged](t, rr); logged.Entry.Calories != 225 || logged.Entry.Quantity != 50 {
		t.Errorf("saved entry = %+v", logged.Entry)
	}

	if rr := do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/saved",
		`{"category":"breakfast","product_id":"missing","grams":50}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown product = %d, want 404", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/saved",
		`{"category":"breakfast","product_id":"`+p.ID+`","grams":"0"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("zero grams = %d, want 400", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/products/"+p.ID, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete product = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/products/"+p.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("delete missing product = %d, want 404", rr.Code)
	}
}

func TestLabelEntry(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)

	rr := do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/label",
		`{"category":"other","grams":30,"save":true,"scan":{"product":"Crackers","per":"100g","kcal":450,"carbs":70,"protein":9,"fat":15}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("label entry = %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[labelResponse](t, rr)
	if got.Entry.Calories != 135 || got.Product == nil || got.Product.Name != "Crackers" {
		t.Errorf("label response = %+v", got)
	}

	// Saving the same product again still logs the entry.
	rr = do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/label",
		`{"category":"other","grams":30,"save":true,"scan":{"product":"crackers","per":"100g","kcal":450}}`)
	if rr.Code != http.StatusCreated || decode[labelResponse](t, rr).Product != nil {
		t.Errorf("repeat save = %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/label",
		`{"category":"other","grams":30,"scan":{"product":"Air","per":"100g"}}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty scan = %d, want 400", rr.Code)
	}
}

func TestLabelEntryInvalidGramsSavesNothing(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)

	for _, grams := range []string{"0", "-5"} {
		rr := do(t, srv, http.MethodPost, "/api/days/"+testDay+"/entries/label",
			`{"category":"other","grams":`+grams+`,"save":true,"scan":{"product":"Crackers","per":"100g","kcal":450}}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("grams %s = %d, want 400", grams, rr.Code)
		}
		var body ErrorBody
		json.Unmarshal(rr.Body.Bytes(), &body)
		if body.Error.Field != "grams" {
			t.Errorf("error field = %q, want grams", body.Error.Field)
		}
	}
	if list := decode[[]core.Product](t, do(t, srv, http.MethodGet, "/api/products", "")); len(list) != 0 {
		t.Errorf("catalog = %+v, want empty after rejected entries", list)
	}
	if day := decode[dayResponse](t, do(t, srv, http.MethodGet, "/api/days/"+testDay, "")); day.Summary.EntryCount != 0 {
		t.Errorf("entries = %d, want 0", day.Summary.EntryCount)
	}
}

func TestAnonymousDialogsAreReleased(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)
	entries := "/api/days/" + testDay + "/entries"

	for i := 0; i < 20; i++ {
		if rr := do(t, srv, http.MethodPost, entries+"/text", `{"category":"lunch","text":"soup"}`); rr.Code != http.StatusCreated {
			t.Fatalf("text status = %d: %s", rr.Code, rr.Body.String())
		}
		if rr := do(t, srv, http.MethodPost, entries, `{"category":"lunch","label":"Tea","calories":5}`); rr.Code != http.StatusCreated {
			t.Fatalf("manual status = %d: %s", rr.Code, rr.Body.String())
		}
	}
	if n := srv.journal.OpenDialogs(); n != 0 {
		t.Errorf("open dialogs = %d, want 0 after anonymous requests", n)
	}

	do(t, srv, http.MethodPost, entries+"/text", `{"category":"lunch","text":"soup"}`, SessionHeader, "tab-1")
	if n := srv.journal.OpenDialogs(); n != 1 {
		t.Errorf("open dialogs = %d, want the session dialog kept", n)
	}
	ready := decode[struct {
		Checks map[string]string `json:"checks"`
	}](t, do(t, srv, http.MethodGet, "/readyz", ""))
	if ready.Checks["open_dialogs"] != "1" {
		t.Errorf("readyz open_dialogs = %q, want 1", ready.Checks["open_dialogs"])
	}
}

func TestScanUpload(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("category", "breakfast")
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="label.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, _ := mw.CreatePart(h)
	_, _ = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10})
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/labels/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("scan status = %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[scanResponse](t, rr)
	if got.Scan.Product != "Granola" || !got.PerHundred || got.Product.Per != "100g" {
		t.Errorf("scan = %+v", got)
	}

	// No file part.
	req = httptest.NewRequest(http.MethodPost, "/api/labels/scan", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-multipart scan = %d, want 400", rr.Code)
	}
}

func TestFoodSearch(t *testing.T) {
	srv := newTestServer(t, &fakeEstimator{}, nil)
	rr := do(t, srv, http.MethodGet, "/api/foods/search?q=banana", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("search = %d", rr.Code)
	}
	if m := decode[estimate.FoodMatch](t, rr); m.Per100g.Calories != 89 {
		t.Errorf("match = %+v", m)
	}
	if rr := do(t, srv, http.MethodGet, "/api/foods/search?q=unobtainium", ""); rr.Code != http.StatusNotFound {
		t.Errorf("miss = %d, want 404", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newServerWith(t, Deps{Journal: newTestJournal(t, &fakeEstimator{}), RateLimitRPS: 0.01})

	codes := map[int]int{}
	for range 5 {
		codes[do(t, srv, http.MethodGet, "/api/goals", "").Code]++
	}
	if codes[http.StatusOK] != 1 || codes[http.StatusTooManyRequests] != 4 {
		t.Errorf("status counts = %v, want one 200 then 429s", codes)
	}
	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("health checks are not rate limited, got %d", rr.Code)
	}
}
