package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kcal/internal/core"
	"kcal/internal/estimate"
)

// chatServer answers every completion with content and records the requests.
func chatServer(t *testing.T, status int, content string, seen *[]chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil {
			*seen = append(*seen, req)
		}
		if status != http.StatusOK {
			http.Error(w, "upstream down", status)
			return
		}
		resp := map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{APIKey: "test-key", BaseURL: url})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestInterpretFoods(t *testing.T) {
	var seen []chatRequest
	content := "Sure! Here it is:\n```json\n{\"items\": [{\"name\": \"arroz\", \"name_en\": \"rice\", \"grams\": 80}, {\"name\": \"pollo\", \"name_en\": \"chicken\", \"grams\": \"150\"}]}\n```"
	srv := chatServer(t, http.StatusOK, content, &seen)

	got, err := newTestClient(t, srv.URL).InterpretFoods(context.Background(), "200g de arroz con pollo")
	if err != nil {
		t.Fatalf("InterpretFoods: %v", err)
	}
	want := []estimate.FoodItem{
		{Name: "arroz", NameEN: "rice", Grams: 80},
		{Name: "pollo", NameEN: "chicken", Grams: 150},
	}
	if len(got.Items) != 2 || got.Items[0] != want[0] || got.Items[1] != want[1] {
		t.Fatalf("Items = %+v", got.Items)
	}
	if len(seen) != 1 || seen[0].Model != DefaultTextModel || seen[0].Temperature != 0.1 {
		t.Fatalf("request = %+v", seen)
	}
}

func TestInterpretFoodsLegacyFieldNames(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"items":[{"food_es":"huevo","food_en":"egg","grams":60}]}`, nil)
	got, err := newTestClient(t, srv.URL).InterpretFoods(context.Background(), "un huevo")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 1 || got.Items[0].Name != "huevo" || got.Items[0].NameEN != "egg" {
		t.Fatalf("Items = %+v", got.Items)
	}
}

func TestInterpretFoodsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
	}{
		{"non 2xx", http.StatusBadGateway, ""},
		{"no json", http.StatusOK, "I cannot help with that."},
		{"broken json", http.StatusOK, `{"items": [ {"name": }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.content, nil)
			_, err := newTestClient(t, srv.URL).InterpretFoods(context.Background(), "x")
			if !errors.Is(err, core.ErrInterpretation) {
				t.Fatalf("expected ErrInterpretation, got %v", err)
			}
		})
	}
}

func TestLookupNutrients(t *testing.T) {
	var seen []chatRequest
	srv := chatServer(t, http.StatusOK, `{"foods":[{"name":"arroz","kcal":130,"carbs":28,"protein":2.7,"fat":0.3},{"name":"pollo","kcal":"165","carbs":0,"protein":31,"fat":-2}]}`, &seen)

	got, err := newTestClient(t, srv.URL).LookupNutrients(context.Background(), []string{"arroz", "pollo"})
	if err != nil {
		t.Fatalf("LookupNutrients: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[1].Per100g.Calories != 165 || got[1].Per100g.Fat != 0 {
		t.Fatalf("profile = %+v", got[1])
	}
	prompt, _ := seen[0].Messages[0].Content.(string)
	if !strings.Contains(prompt, "arroz, pollo") {
		t.Fatalf("prompt does not list foods: %q", prompt)
	}
}

func TestLookupNutrientsDropsFoodsWithoutValues(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"foods":[{"name":"arroz"},{"name":"pollo","kcal":null,"carbs":"n/a"},{"name":"agua","kcal":0}]}`, nil)

	got, err := newTestClient(t, srv.URL).LookupNutrients(context.Background(), []string{"arroz", "pollo", "agua"})
	if err != nil {
		t.Fatalf("LookupNutrients: %v", err)
	}
	if len(got) != 1 || got[0].Name != "agua" {
		t.Fatalf("LookupNutrients() = %+v, want only agua", got)
	}
}

func TestScanLabel(t *testing.T) {
	var seen []chatRequest
	srv := chatServer(t, http.StatusOK, `{"product":"Corn Flakes","per":"100g","kcal":378,"carbs":84,"protein":7,"fat":0.9}`, &seen)

	got, err := newTestClient(t, srv.URL).ScanLabel(context.Background(), estimate.Image{Data: []byte{1, 2, 3}, MediaType: "image/png"})
	if err != nil {
		t.Fatalf("ScanLabel: %v", err)
	}
	want := estimate.LabelScan{Product: "Corn Flakes", Per: "100g", Kcal: 378, Carbs: 84, Protein: 7, Fat: 0.9}
	if got != want {
		t.Fatalf("ScanLabel() = %+v, want %+v", got, want)
	}
	if seen[0].Model != DefaultVisionModel {
		t.Fatalf("model = %q", seen[0].Model)
	}
	parts, _ := seen[0].Messages[0].Content.([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %#v", seen[0].Messages[0].Content)
	}
}

func TestScanLabelUnreadable(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"product":"","kcal":0,"carbs":0,"protein":0,"fat":0}`, nil)
	_, err := newTestClient(t, srv.URL).ScanLabel(context.Background(), estimate.Image{Data: []byte{1}})
	if !errors.Is(err, core.ErrScan) {
		t.Fatalf("expected ErrScan, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"text {\"a\":{\"b\":2}} trailing", `{"a":{"b":2}}`, true},
		{"no object", "", false},
		{"} reversed {", "", false},
	}
	for _, tc := range cases {
		got, err := extractJSON(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("extractJSON(%q) = %q, %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("extractJSON(%q) expected error", tc.in)
		}
	}
}
