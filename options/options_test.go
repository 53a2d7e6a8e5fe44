package options

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hazyhaar/tldr/dbopen"
	"github.com/hazyhaar/tldr/horosafe"
	"github.com/hazyhaar/tldr/observability"
	"github.com/hazyhaar/tldr/settings"

	_ "modernc.org/sqlite"
)

const base = "http://127.0.0.1:8787"

type fakeUsage []observability.Totals

func (f fakeUsage) Totals(context.Context) ([]observability.Totals, error) { return f, nil }

func newServer(t *testing.T, usage UsageSource) (*Server, *settings.Store) {
	t.Helper()
	store, err := settings.NewStore(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(Config{Store: store, Usage: usage})
	if err != nil {
		t.Fatal(err)
	}
	return s, store
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_NilStore(t *testing.T) {
	if _, err := New(Config{}); err == nil || !strings.Contains(err.Error(), "Store is required") {
		t.Fatalf("got %v", err)
	}
}

func TestPage_Defaults(t *testing.T) {
	s, _ := newServer(t, nil)
	rec := serve(s.Handler(), httptest.NewRequest(http.MethodGet, base+"/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`value="openai" checked`,
		`class="field hidden-field" id="anthropic-container"`,
		`class="field" id="openai-container"`,
		`name="show_token_cost" value="true" checked`,
		`<script src="/options.js">`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `id="status"`) {
		t.Error("status shown before any save")
	}
}

func TestForm_SaveThenConfirm(t *testing.T) {
	s, store := newServer(t, nil)
	h := s.Handler()

	form := url.Values{
		"ai_provider":       {"anthropic"},
		"openai_api_key":    {""},
		"anthropic_api_key": {"  sk-ant-secret-1234  "},
	}
	req := httptest.NewRequest(http.MethodPost, base+"/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(h, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}

	st, _ := store.Get(context.Background())
	if st.Provider != settings.ProviderAnthropic || st.SecondaryAPIKey != "sk-ant-secret-1234" || st.ShowCost {
		t.Fatalf("stored = %+v", st)
	}

	// Follow the redirect with the flash cookie.
	next := httptest.NewRequest(http.MethodGet, base+"/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	body := serve(h, next).Body.String()
	if !strings.Contains(body, SavedMessage) {
		t.Error("confirmation missing")
	}
	if strings.Contains(body, "sk-ant-secret") {
		t.Error("key rendered unmasked")
	}
	if !strings.Contains(body, `value="anthropic" checked`) {
		t.Error("provider not restored")
	}
}

func TestForm_MaskedKeyIsKept(t *testing.T) {
	s, store := newServer(t, nil)
	ctx := context.Background()
	if err := store.Save(ctx, settings.Settings{PrimaryAPIKey: "sk-openai-abcdefgh", Provider: "openai"}); err != nil {
		t.Fatal(err)
	}

	form := url.Values{
		"ai_provider":     {"openai"},
		"openai_api_key":  {"**************efgh"},
		"show_token_cost": {"true"},
	}
	req := httptest.NewRequest(http.MethodPost, base+"/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	serve(s.Handler(), req)

	st, _ := store.Get(ctx)
	if st.PrimaryAPIKey != "sk-openai-abcdefgh" || !st.ShowCost {
		t.Fatalf("stored = %+v", st)
	}
}

func TestForm_UnknownProvider(t *testing.T) {
	s, _ := newServer(t, nil)
	h := s.Handler()
	req := httptest.NewRequest(http.MethodPost, base+"/", strings.NewReader("ai_provider=gemini"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(h, req)

	next := httptest.NewRequest(http.MethodGet, base+"/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	body := serve(h, next).Body.String()
	if !strings.Contains(body, `class="error"`) || strings.Contains(body, SavedMessage) {
		t.Errorf("expected error status, got %s", body)
	}
}

func TestAPI_GetMasks(t *testing.T) {
	s, store := newServer(t, nil)
	store.Save(context.Background(), settings.Settings{PrimaryAPIKey: "sk-openai-abcdefgh", Provider: "openai", ShowCost: true})

	rec := serve(s.Handler(), httptest.NewRequest(http.MethodGet, base+"/api/settings", nil))
	var v View
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.OpenAIKey != "**************efgh" || v.AnthropicKey != "" || v.Provider != "openai" || !v.ShowCost {
		t.Errorf("view = %+v", v)
	}
}

func TestAPI_Put(t *testing.T) {
	s, store := newServer(t, nil)
	ctx := context.Background()
	store.Save(ctx, settings.Settings{PrimaryAPIKey: "sk-openai-abcdefgh", Provider: "openai"})

	body := `{"openai_api_key":"**************efgh","anthropic_api_key":"sk-ant-new-key-9999","ai_provider":"anthropic","show_token_cost":true}`
	rec := serve(s.Handler(), httptest.NewRequest(http.MethodPut, base+"/api/settings", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	st, _ := store.Get(ctx)
	if st.PrimaryAPIKey != "sk-openai-abcdefgh" || st.SecondaryAPIKey != "sk-ant-new-key-9999" || st.Provider != "anthropic" {
		t.Fatalf("stored = %+v", st)
	}
	if strings.Contains(rec.Body.String(), "sk-ant-new") {
		t.Error("response leaks key")
	}
}

func TestAPI_PutErrors(t *testing.T) {
	s, _ := newServer(t, nil)
	h := s.Handler()

	rec := serve(h, httptest.NewRequest(http.MethodPut, base+"/api/settings", strings.NewReader(`{`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rec.Code)
	}
	rec = serve(h, httptest.NewRequest(http.MethodPut, base+"/api/settings", strings.NewReader(`{"ai_provider":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad provider: status = %d", rec.Code)
	}
}

func TestUsage(t *testing.T) {
	s, _ := newServer(t, fakeUsage{{Provider: "openai", Invocations: 3, Summaries: 2, TotalTokens: 900, Cost: 0.0012}})
	h := s.Handler()

	rec := serve(h, httptest.NewRequest(http.MethodGet, base+"/api/usage", nil))
	var totals []observability.Totals
	if err := json.NewDecoder(rec.Body).Decode(&totals); err != nil {
		t.Fatal(err)
	}
	if len(totals) != 1 || totals[0].TotalTokens != 900 {
		t.Errorf("totals = %+v", totals)
	}

	page := serve(h, httptest.NewRequest(http.MethodGet, base+"/", nil)).Body.String()
	if !strings.Contains(page, "$0.00120") {
		t.Error("usage table missing from page")
	}
}

func TestUsage_NotMountedWithoutSource(t *testing.T) {
	s, _ := newServer(t, nil)
	rec := serve(s.Handler(), httptest.NewRequest(http.MethodGet, base+"/api/usage", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestForeignHostRejected(t *testing.T) {
	s, _ := newServer(t, nil)
	rec := serve(s.Handler(), httptest.NewRequest(http.MethodGet, "http://attacker.example/api/settings", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMerge(t *testing.T) {
	stored := settings.Settings{PrimaryAPIKey: "old-openai-key-1", SecondaryAPIKey: "old-anthropic-2"}
	got := merge(stored, View{OpenAIKey: horosafe.MaskSecret("old-openai-key-1"), AnthropicKey: "", Provider: "openai"})
	if got.PrimaryAPIKey != "old-openai-key-1" || got.SecondaryAPIKey != "" {
		t.Errorf("merge = %+v", got)
	}
}
