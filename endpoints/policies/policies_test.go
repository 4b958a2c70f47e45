package policies

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~aondrejcak/policy-console/console"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/middleware"
	"git.sr.ht/~aondrejcak/policy-console/templates"
)

const listing = `[
	{"id": "hr-1", "name": "Remote Work", "type": "HR", "scope": "All Employees", "description": "Home office rules",
	 "effective_date": "2025-01-01", "created_at": "2024-12-20T09:30:00", "owner": {"team": "People & Culture"}, "documents": [{"name": "a.pdf"}, {"name": "b.pdf"}]},
	{"id": 2, "name": "Passwords", "type": "IT", "scope": "IT Department", "description": "Rotation",
	 "effective_date": "2025-02-01", "expiry_date": "2026-02-01"}
]`

type created struct {
	fields url.Values
	files  []string
}

type fakeAPI struct {
	mu sync.Mutex

	createStatus int
	createBody   string
	creates      []created

	updates map[string]map[string]any
	deletes []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":"2.0"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/stats":
		_, _ = io.WriteString(w, `{"total_policies": 2, "active_policies": 2}`)
	case r.Method == http.MethodGet && r.URL.Path == "/policies":
		_, _ = io.WriteString(w, listing)
	case r.Method == http.MethodPost && r.URL.Path == "/policies":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c := created{fields: url.Values(r.MultipartForm.Value)}
		for _, fh := range r.MultipartForm.File["files"] {
			c.files = append(c.files, fh.Filename)
		}
		f.creates = append(f.creates, c)
		if f.createStatus != 0 {
			w.WriteHeader(f.createStatus)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		_, _ = io.WriteString(w, f.createBody)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/policies/"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.updates == nil {
			f.updates = map[string]map[string]any{}
		}
		f.updates[strings.TrimPrefix(r.URL.Path, "/policies/")] = body
		_, _ = io.WriteString(w, `{"message":"updated"}`)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/policies/"):
		id := strings.TrimPrefix(r.URL.Path, "/policies/")
		if id == "2" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"detail":"locked"}`)
			return
		}
		f.deletes = append(f.deletes, id)
		_, _ = io.WriteString(w, `{"message":"deleted"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type browser struct {
	r       *gin.Engine
	cookies []*http.Cookie
}

func newBrowser(t *testing.T, api http.Handler) *browser {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	now = func() time.Time { return time.Date(2025, 9, 16, 8, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	art := kernel.NewAppRuntime(map[string]string{"API_BASE_URL": srv.URL})
	r := gin.New()
	require.NoError(t, templates.Load(r))
	r.Use(middleware.TracerMiddleware(art))
	g := r.Group("/")
	g.Use(middleware.SessionMiddleware())
	RegisterController(g)

	return &browser{r: r}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.r.ServeHTTP(rec, req)
	if cs := rec.Result().Cookies(); len(cs) > 0 {
		b.cookies = cs
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

type upload struct {
	name string
	data string
}

func (b *browser) postMultipart(t *testing.T, path string, form url.Values, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, vs := range form {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return b.do(req)
}

func validForm() url.Values {
	return url.Values{
		"name":            {"  Travel Expenses "},
		"type":            {"Customer"},
		"scope":           {"Sales"},
		"description":     {"Reimbursement rules"},
		"effective_date":  {"2025-10-01"},
		"expiry_date":     {"2026-10-01"},
		"check_duplicate": {"true"},
	}
}

func TestListPolicies(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	rec := b.get("/policies")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "✅ Found 2 policies")
	assert.Contains(t, body, "<strong>Documents:</strong> 2 files")
	assert.Contains(t, body, "<strong>Expires:</strong> No expiry")
	assert.Contains(t, body, "<strong>Expires:</strong> 2026-02-01")
	assert.Contains(t, body, `href="/policies/2/delete"`)
}

func TestViewPolicy(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})

	body := b.get("/policies/hr-1").Body.String()
	assert.Contains(t, body, "📄 Remote Work - Details")
	assert.Contains(t, body, "&#34;effective_date&#34;: &#34;2025-01-01&#34;")
	assert.Contains(t, body, "&#34;created_at&#34;: &#34;2024-12-20T09:30:00&#34;")
	assert.Contains(t, body, "&#34;team&#34;: &#34;People &amp; Culture&#34;")

	rec := b.get("/policies/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No policy with id")
}

func TestNewPolicy_Defaults(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	body := b.get("/policies/new").Body.String()

	assert.Contains(t, body, `value="2025-09-16"`)
	assert.Contains(t, body, `value="All Employees"`)
	assert.Contains(t, body, `name="no_expiry" value="true" checked`)
	assert.Contains(t, body, `<option value="HR" selected>HR</option>`)
}

func TestCreatePolicy_SendsOneRequest(t *testing.T) {
	api := &fakeAPI{createBody: `{"message": "Policy created", "id": "c-9"}`}
	b := newBrowser(t, api)

	rec := b.postMultipart(t, "/policies/new", validForm(), upload{"rules.pdf", "%PDF"}, upload{"notes.txt", "n"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, api.creates, 1)
	got := api.creates[0]
	assert.Equal(t, "Travel Expenses", got.fields.Get("name"))
	assert.Equal(t, "Customer", got.fields.Get("type"))
	assert.Equal(t, "2025-10-01", got.fields.Get("effective_date"))
	assert.Equal(t, "2026-10-01", got.fields.Get("expiry_date"))
	assert.Equal(t, []string{"rules.pdf", "notes.txt"}, got.files)

	body := rec.Body.String()
	assert.Contains(t, body, "✅ Policy created")
	assert.Contains(t, body, "Payload Preview")
	assert.Contains(t, body, "Last created: <strong>Travel Expenses</strong>")
	assert.NotContains(t, body, "already exists")

	// the next visit still offers the follow-up links until "create another"
	assert.Contains(t, b.get("/policies/new").Body.String(), "Create Another Policy")
	assert.NotContains(t, b.get("/policies/new?another=1").Body.String(), "Create Another Policy")
}

func TestCreatePolicy_NoExpiryOmitsDate(t *testing.T) {
	api := &fakeAPI{createBody: `{}`}
	b := newBrowser(t, api)

	form := validForm()
	form.Set("no_expiry", "true")
	rec := b.post("/policies/new", form)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, api.creates, 1)
	assert.NotContains(t, api.creates[0].fields, "expiry_date")
	assert.Contains(t, rec.Body.String(), "Policy &#39;Travel Expenses&#39; created successfully.")
}

func TestCreatePolicy_ValidationErrors(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	rec := b.post("/policies/new", url.Values{"name": {" "}, "type": {"Finance"}, "effective_date": {"2025-01-01"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Please fix the following")
	assert.Contains(t, body, "<li>Policy Name is required.</li>")
	assert.Contains(t, body, "<li>Policy Type must be one of: HR, IT, Leave, Customer.</li>")
	assert.Empty(t, api.creates)

	rec = b.postMultipart(t, "/policies/new", validForm(), upload{"virus.exe", "MZ"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "virus.exe")
	assert.Empty(t, api.creates)
}

func TestCreatePolicy_OversizedUploadIsRejected(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	huge := strings.Repeat("x", console.MaxUploadBytes+2<<20)
	rec := b.postMultipart(t, "/policies/new", validForm(), upload{"huge.pdf", huge})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "<li>Total upload size exceeds 25 MB.</li>")
	assert.Empty(t, api.creates)
}

func TestCreatePolicy_DuplicateWarningStillCreates(t *testing.T) {
	api := &fakeAPI{createBody: `{}`}
	b := newBrowser(t, api)

	form := validForm()
	form.Set("name", "remote work")
	body := b.post("/policies/new", form).Body.String()

	assert.Contains(t, body, "⚠️ A policy with the name <strong>remote work</strong> already exists")
	assert.Contains(t, body, "<code>hr-1</code>")
	assert.Len(t, api.creates, 1)

	form.Del("check_duplicate")
	body = b.post("/policies/new", form).Body.String()
	assert.NotContains(t, body, "already exists")
}

func TestCreatePolicy_FailureHints(t *testing.T) {
	for status, hint := range map[int]string{
		http.StatusUnprocessableEntity: "One or more required fields may be missing or invalid.",
		http.StatusInternalServerError: "Server error.",
		http.StatusConflict:            "Verify API_BASE_URL",
	} {
		api := &fakeAPI{createStatus: status, createBody: `{"detail": "nope"}`}
		b := newBrowser(t, api)

		body := b.post("/policies/new", validForm()).Body.String()
		assert.Contains(t, body, "Failed to create policy (HTTP ")
		assert.Contains(t, body, hint)
		assert.Contains(t, body, "nope")
	}
}

func TestEditPolicy(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	body := b.get("/policies/2/edit").Body.String()
	assert.Contains(t, body, `value="Passwords"`)
	assert.Contains(t, body, `value="2026-02-01"`)

	form := url.Values{
		"name": {"Passwords v2"}, "type": {"IT"}, "scope": {"Everyone"},
		"description": {"Rotate yearly"}, "effective_date": {"2025-02-01"}, "no_expiry": {"true"},
	}
	rec := b.post("/policies/2/edit", form)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/policies", rec.Header().Get("Location"))

	require.Contains(t, api.updates, "2")
	assert.Equal(t, "Passwords v2", api.updates["2"]["name"])
	assert.Nil(t, api.updates["2"]["expiry_date"])

	assert.Contains(t, b.get("/policies").Body.String(), "✅ Updated &#39;Passwords v2&#39;")
}

func TestEditPolicy_RejectsExpiryBeforeEffective(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	form := url.Values{
		"name": {"Passwords"}, "type": {"IT"}, "scope": {"IT"}, "description": {"d"},
		"effective_date": {"2025-02-01"}, "expiry_date": {"2025-01-01"},
	}
	rec := b.post("/policies/2/edit", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expiry Date cannot be before the Effective Date.")
	assert.Empty(t, api.updates)
}

func TestDeletePolicy(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	assert.Contains(t, b.get("/policies/hr-1/delete").Body.String(), "Confirm Delete &#39;Remote Work&#39;")

	rec := b.post("/policies/hr-1/delete", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []string{"hr-1"}, api.deletes)

	body := b.get("/policies").Body.String()
	assert.Contains(t, body, "✅ Deleted &#39;Remote Work&#39;")
	// flash is shown once
	assert.NotContains(t, b.get("/policies").Body.String(), "Deleted &#39;Remote Work&#39;")

	b.post("/policies/2/delete", nil)
	assert.Contains(t, b.get("/policies").Body.String(), "❌ Failed to delete: API Error: 403")
}
