package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmgr/internal/apiclient"
	"finmgr/internal/log"
	"finmgr/internal/services"
	"finmgr/internal/session"
	"finmgr/internal/wizard"
)

// fakeAPI is the REST backend. It accepts the bearer in access and mints
// "access-2" on refresh while refreshOK is set.
type fakeAPI struct {
	mu        sync.Mutex
	access    string
	refreshOK bool

	invoiceGate   chan struct{}
	rejectInvoice string

	budgetBody map[string]string
	upload     struct{ title, fileType, filename, content string }
	profile    map[string]string

	refreshes atomic.Int32
	creates   atomic.Int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		access:    "access-1",
		refreshOK: true,
		profile:   map[string]string{"name": "Alice", "email": "alice@example.test", "language": "en", "theme": "light"},
	}
}

func (f *fakeAPI) expireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = "rotated"
}

func (f *fakeAPI) failRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshOK = false
}

func (f *fakeAPI) rejectInvoices(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectInvoice = body
}

func (f *fakeAPI) holdInvoices() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiceGate = make(chan struct{})
	return f.invoiceGate
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+f.access
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !f.authorized(r) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("POST /api/token/", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Username != "alice" || body.Password != "s3cret!" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": "access-1", "refresh": "refresh-1"})
	})
	mux.HandleFunc("POST /api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.refreshOK {
			http.Error(w, `{"detail":"Token is blacklisted"}`, http.StatusUnauthorized)
			return
		}
		f.access = "access-2"
		writeJSON(w, http.StatusOK, map[string]string{"access": f.access})
	})
	mux.HandleFunc("GET /api/budgets/", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "category": "Rent", "allocated": "1000.00", "spent": "950.00"},
		})
	}))
	mux.HandleFunc("POST /api/budgets/", auth(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.budgetBody = body
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": 2, "category": body["category"], "allocated": body["allocated"], "spent": body["spent"]})
	}))
	mux.HandleFunc("GET /api/documents/", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 4, "title": "Lease", "file": "/media/lease.pdf", "file_type": "pdf"}})
	}))
	mux.HandleFunc("POST /api/documents/", auth(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"file":["No file was submitted."]}`, http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		f.mu.Lock()
		f.upload.title = r.FormValue("title")
		f.upload.fileType = r.FormValue("file_type")
		f.upload.filename = header.Filename
		f.upload.content = string(content)
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": 5, "title": r.FormValue("title")})
	}))
	mux.HandleFunc("GET /api/profile/", auth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.profile)
	}))
	mux.HandleFunc("PUT /api/profile/", auth(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.profile = body
		writeJSON(w, http.StatusOK, body)
	}))
	mux.HandleFunc("GET /api/invoices/{id}/pdf/{$}", auth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 invoice " + r.PathValue("id")))
	}))
	mux.HandleFunc("GET /api/weekly-report/", auth(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("format") {
		case "csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("date,amount\n2026-10-01,3000.00\n"))
		case "xlsx":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	mux.HandleFunc("GET /api/transactions/", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"balance": "1234.50",
			"transactions": []map[string]any{
				{"id": 1, "date": "2026-10-01", "type": "Income", "category": "Salary", "amount": "3000.00"},
				{"id": 2, "date": "2026-10-03", "type": "Expense", "category": "Rent", "amount": "950.00"},
			},
		})
	}))
	mux.HandleFunc("GET /api/invoices/", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	}))
	mux.HandleFunc("GET /api/invoices/client_names/{$}", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"client_names": []string{"Acme"}})
	}))
	mux.HandleFunc("GET /api/invoices/client_details/{$}", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Acme" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"client_name":     "Acme",
			"client_location": "Nairobi",
			"client_address":  "1 Main St",
			"client_tin":      "P051",
			"client_email":    "billing@acme.test",
		})
	}))
	mux.HandleFunc("POST /api/invoices/", auth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		gate, reject := f.invoiceGate, f.rejectInvoice
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if reject != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(reject))
			return
		}
		n := f.creates.Add(1)
		writeJSON(w, http.StatusCreated, map[string]any{"id": n, "invoice_number": fmt.Sprintf("INV-%03d", n), "client_name": "Acme"})
	}))
	return mux
}

type testEnv struct {
	api      *fakeAPI
	sessions *session.MemoryStore
	srv      *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := newFakeAPI()
	backend := httptest.NewServer(api.handler())
	t.Cleanup(backend.Close)

	client, err := apiclient.New(backend.URL+"/api/", 5*time.Second)
	require.NoError(t, err)

	store := session.NewMemoryStore(time.Hour)
	srv := NewServer(":0", Options{
		API:            client,
		Sessions:       store,
		LoginRateLimit: 1000,
		Logger:         log.Discard(),
		Now:            func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{api: api, sessions: store, srv: srv}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func withCookie(req *http.Request, c *http.Cookie) *http.Request {
	req.AddCookie(c)
	return req
}

func htmx(req *http.Request) *http.Request {
	req.Header.Set("HX-Request", "true")
	return req
}

// login signs alice in and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(postForm("/login", url.Values{"username": {"alice"}, "password": {"s3cret!"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, dashboardPath, rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json", path)
	}
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, dashboardPath, nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, loginPath, rec.Header().Get("Location"))

	rec = env.do(htmx(httptest.NewRequest(http.MethodGet, "/financial-manager/budgets", nil)))
	assert.Equal(t, loginPath, rec.Header().Get("HX-Redirect"))

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, dashboardPath, nil),
		&http.Cookie{Name: sessionCookie, Value: "forged"}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing fields", func(t *testing.T) {
		rec := env.do(postForm("/login", url.Values{"username": {"alice"}}))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "Username and password are required.")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(postForm("/login", url.Values{"username": {"alice"}, "password": {"nope"}}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid credentials. Please try again.")
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("htmx success redirects client side", func(t *testing.T) {
		rec := env.do(htmx(postForm("/login", url.Values{"username": {"alice"}, "password": {"s3cret!"}})))
		assert.Equal(t, dashboardPath, rec.Header().Get("HX-Redirect"))
	})

	t.Run("cookie is http only", func(t *testing.T) {
		c := env.login(t)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	})
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodGet, dashboardPath, nil), c))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "1,234.50")
	assert.Contains(t, body, "Salary")
	assert.Contains(t, body, "badge-warning")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)

	env.do(withCookie(httptest.NewRequest(http.MethodGet, budgetsPath, nil), c))
	env.do(withCookie(httptest.NewRequest(http.MethodGet, wizardPath, nil), c))
	_, ok := env.srv.budgets.Get(budgetsKey(c.Value))
	require.True(t, ok)
	_, ok = env.srv.clientNames.Get(services.ClientNamesKey(c.Value))
	require.True(t, ok)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodPost, "/logout", nil), c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	_, err := env.sessions.Get(context.Background(), c.Value)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Zero(t, env.srv.budgets.Size())
	assert.Zero(t, env.srv.clientNames.Size())
}

func TestExpiredAccessTokenIsRefreshedOnce(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)
	env.api.expireAccess()

	rec := env.do(withCookie(httptest.NewRequest(http.MethodGet, "/financial-manager/invoices", nil), c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), env.api.refreshes.Load())

	sess, err := env.sessions.Get(context.Background(), c.Value)
	require.NoError(t, err)
	assert.Equal(t, "access-2", sess.AccessToken)
}

func TestFailedRefreshLogsOut(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)
	env.api.expireAccess()
	env.api.failRefresh()

	rec := env.do(htmx(withCookie(httptest.NewRequest(http.MethodGet, "/financial-manager/invoices", nil), c)))
	assert.Equal(t, loginPath, rec.Header().Get("HX-Redirect"))

	_, err := env.sessions.Get(context.Background(), c.Value)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)

	rec := env.do(htmx(withCookie(postForm("/financial-manager/transactions",
		url.Values{"type": {"Gift"}, "amount": {"10"}}), c)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, bannerTarget, rec.Header().Get("HX-Retarget"))
	assert.Contains(t, rec.Body.String(), "Please select a valid transaction type (Income or Expense).")

	rec = env.do(htmx(withCookie(postForm("/financial-manager/transactions",
		url.Values{"type": {"Expense"}, "amount": {"0"}}), c)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// wizardPost sends one wizard action as htmx would.
func (e *testEnv) wizardPost(c *http.Cookie, action string, fields url.Values) *httptest.ResponseRecorder {
	form := url.Values{"action": {action}}
	for k, v := range fields {
		form[k] = v
	}
	return e.do(htmx(withCookie(postForm(wizardPath, form), c)))
}

func (e *testEnv) wizardState(t *testing.T, c *http.Cookie) *wizard.Wizard {
	t.Helper()
	data, err := e.sessions.LoadWizard(context.Background(), c.Value)
	require.NoError(t, err)
	wiz, err := wizard.Restore(data)
	require.NoError(t, err)
	return wiz
}

// walkToReview fills every step for Acme with one item.
func (e *testEnv) walkToReview(t *testing.T, c *http.Cookie) {
	t.Helper()
	rec := e.wizardPost(c, "lookup_client", url.Values{"existing_client": {"Acme"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nairobi")

	rec = e.wizardPost(c, "next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, wizard.StepInvoiceDetails, e.wizardState(t, c).Step())

	e.wizardPost(c, "next", url.Values{
		"date":      {"2026-10-15"},
		"bill_type": {"Tax Invoice"},
		"title":     {"October services"},
		"signature": {"siza"},
	})
	require.Equal(t, wizard.StepItems, e.wizardState(t, c).Step())

	e.wizardPost(c, "next", url.Values{
		"item_description": {"Consulting"},
		"item_quantity":    {"2"},
		"item_unit_price":  {"100"},
		"item_days":        {""},
	})
	require.Equal(t, wizard.StepOptions, e.wizardState(t, c).Step())

	e.wizardPost(c, "toggle_vat", nil)
	rec = e.wizardPost(c, "next", url.Values{"vat_rate": {"18"}})
	require.Equal(t, wizard.StepReview, e.wizardState(t, c).Step())
	assert.Contains(t, rec.Body.String(), "236.00")
}

func TestWizard_ValidationKeepsStep(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodGet, wizardPath, nil), c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")

	rec = env.wizardPost(c, "next", url.Values{"client_name": {"Acme"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), wizard.MsgClientLocation)
	assert.Equal(t, wizard.StepClientInfo, env.wizardState(t, c).Step())
}

func TestWizard_ItemsCanBeAddedButNotAllRemoved(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)

	env.wizardPost(c, "add_item", nil)
	assert.Len(t, env.wizardState(t, c).Draft().Items, 2)

	env.wizardPost(c, "remove_item:1", nil)
	assert.Len(t, env.wizardState(t, c).Draft().Items, 1)

	rec := env.wizardPost(c, "remove_item:0", nil)
	assert.Contains(t, rec.Body.String(), "An invoice needs at least one item.")
	assert.Len(t, env.wizardState(t, c).Draft().Items, 1)
}

func TestWizard_SubmitCreatesInvoice(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)
	env.walkToReview(t, c)

	rec := env.wizardPost(c, "submit", nil)
	assert.Equal(t, "/financial-manager/invoices?created=INV-001", rec.Header().Get("HX-Redirect"))
	assert.Equal(t, int32(1), env.api.creates.Load())

	wiz := env.wizardState(t, c)
	assert.Equal(t, wizard.StepClientInfo, wiz.Step())
	assert.Empty(t, wiz.Draft().ClientName)

	rec = env.do(withCookie(httptest.NewRequest(http.MethodGet, "/financial-manager/invoices?created=INV-001", nil), c))
	assert.Contains(t, rec.Body.String(), "Invoice INV-001 created.")
}

func TestWizard_RejectedSubmitShowsBackendBody(t *testing.T) {
	env := newTestEnv(t)
	env.api.rejectInvoices(`{"client_tin":["Invalid TIN"]}`)
	c := env.login(t)
	env.walkToReview(t, c)

	rec := env.wizardPost(c, "submit", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid TIN")

	wiz := env.wizardState(t, c)
	assert.Equal(t, wizard.StepReview, wiz.Step())
	assert.Equal(t, "Acme", wiz.Draft().ClientName)
}

func TestWizard_DoubleSubmitCreatesOnce(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)
	env.walkToReview(t, c)
	gate := env.api.holdInvoices()

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.wizardPost(c, "submit", nil)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), env.api.creates.Load())
}

func TestWizard_JoinedSubmitOutlivesFirstClient(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)
	env.walkToReview(t, c)
	gate := env.api.holdInvoices()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := htmx(withCookie(postForm(wizardPath, url.Values{"action": {"submit"}}), c)).WithContext(ctx)
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		env.do(first)
	}()
	time.Sleep(50 * time.Millisecond)

	second := make(chan *httptest.ResponseRecorder, 1)
	go func() { second <- env.wizardPost(c, "submit", nil) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-firstDone
	close(gate)

	rec := <-second
	assert.Equal(t, "/financial-manager/invoices?created=INV-001", rec.Header().Get("HX-Redirect"))
	assert.Equal(t, int32(1), env.api.creates.Load())
	assert.Equal(t, wizard.StepClientInfo, env.wizardState(t, c).Step())
}

func TestWizard_CancelResets(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)
	env.wizardPost(c, "lookup_client", url.Values{"existing_client": {"Acme"}})
	env.wizardPost(c, "next", nil)

	rec := env.do(withCookie(postForm(wizardPath, url.Values{"action": {"cancel"}}), c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, invoicesPath, rec.Header().Get("Location"))

	wiz := env.wizardState(t, c)
	assert.Equal(t, wizard.StepClientInfo, wiz.Step())
	assert.Empty(t, wiz.Draft().ClientName)
}

func TestWizardPreviewIsPDF(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)
	env.walkToReview(t, c)

	rec := env.do(withCookie(httptest.NewRequest(http.MethodGet, wizardPath+"/preview.pdf", nil), c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestWeeklyReportRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t)
	c := env.login(t)

	rec := env.do(htmx(withCookie(httptest.NewRequest(http.MethodGet, "/financial-manager/reports/weekly?format=docx", nil), c)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported report format.")
}
