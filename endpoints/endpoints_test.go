package endpoints

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

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~aondrejcak/policy-console/console"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/middleware"
	"git.sr.ht/~aondrejcak/policy-console/templates"
)

type fakeAPI struct {
	mu       sync.Mutex
	policies string
	stats    string
	chat     string
	chatCode int
	messages []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"message":"Policy API","version":"2.0"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/stats":
		if f.stats == "" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"detail":"stats broken"}`)
			return
		}
		_, _ = io.WriteString(w, f.stats)
	case r.Method == http.MethodGet && r.URL.Path == "/policies":
		_, _ = io.WriteString(w, f.policies)
	case r.Method == http.MethodPost && r.URL.Path == "/chat":
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.messages = append(f.messages, body.Message)
		if f.chatCode != 0 {
			w.WriteHeader(f.chatCode)
		}
		_, _ = io.WriteString(w, f.chat)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

const twoPolicies = `[
	{"id": 1, "name": "Remote Work", "type": "HR", "scope": "All Employees", "description": "Home office rules", "effective_date": "2025-01-01"},
	{"id": "it-7", "name": "Passwords", "type": "IT", "scope": "IT Department", "description": "Rotation", "effective_date": "2025-02-01", "expiry_date": "2026-02-01"}
]`

type browser struct {
	t       *testing.T
	r       *gin.Engine
	cookies []*http.Cookie
}

func newBrowser(t *testing.T, api http.Handler) *browser {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	art := kernel.NewAppRuntime(map[string]string{"API_BASE_URL": srv.URL})

	r := gin.New()
	require.NoError(t, templates.Load(r))
	r.Use(middleware.TracerMiddleware(art))
	g := r.Group("/")
	g.Use(middleware.SessionMiddleware())
	RegisterController(g, middleware.NewThrottle(600, 100).Middleware())

	return &browser{t: t, r: r}
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

func TestIndexRedirectsToChat(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	rec := b.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/chat", rec.Header().Get("Location"))
}

func TestChatPage_ShowsGreetingAndSidebar(t *testing.T) {
	b := newBrowser(t, &fakeAPI{stats: `{"total_policies": 7, "active_policies": 5}`})
	rec := b.get("/chat")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "your AI Policy Assistant")
	assert.Contains(t, body, "✅ API Connected")
	assert.Contains(t, body, "<strong>Version:</strong> 2.0")
	assert.Contains(t, body, "<strong>7</strong>")
}

func TestChatPage_SidebarWhenStatsFail(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	body := b.get("/chat").Body.String()
	assert.Contains(t, body, "✅ API Connected")
	assert.NotContains(t, body, "Total Policies")
}

func TestChatSend_ListAllStaysLocal(t *testing.T) {
	api := &fakeAPI{policies: twoPolicies}
	b := newBrowser(t, api)

	rec := b.post("/chat", url.Values{"message": {"Show all policies"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/chat#latest", rec.Header().Get("Location"))

	body := b.get("/chat").Body.String()
	assert.Contains(t, body, "Show all policies")
	assert.Contains(t, body, "Found 2 policies.")
	assert.Contains(t, body, "Remote Work")
	assert.Empty(t, api.messages)
}

func TestChatSend_QuickActionForwardsPrompt(t *testing.T) {
	api := &fakeAPI{chat: `{"response": "There are 2 policies."}`}
	b := newBrowser(t, api)

	rec := b.post("/chat", url.Values{"quick": {"stats"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []string{"Show me policy statistics"}, api.messages)
	assert.Contains(t, b.get("/chat").Body.String(), "There are 2 policies.")
}

func TestChatSend_ServiceErrorIsRendered(t *testing.T) {
	api := &fakeAPI{chat: `{"detail": "model offline"}`, chatCode: http.StatusServiceUnavailable}
	b := newBrowser(t, api)

	b.post("/chat", url.Values{"message": {"hello"}})
	assert.Contains(t, b.get("/chat").Body.String(), "❌ Chat service error: 503")
}

func TestChatSend_EmptyMessageIsIgnored(t *testing.T) {
	api := &fakeAPI{}
	b := newBrowser(t, api)

	rec := b.post("/chat", url.Values{"message": {"   "}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, api.messages)
}

func TestChatSend_OversizedUploadIsRejectedEarly(t *testing.T) {
	api := &fakeAPI{policies: `[{"id": 1, "name": "Leave"}]`}
	b := newBrowser(t, api)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("message", "upload file to Leave"))
	fw, err := mw.CreateFormFile("files", "huge.pdf")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("x"), console.MaxUploadBytes+2<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := b.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/chat", rec.Header().Get("Location"))

	page := b.get("/chat").Body.String()
	assert.Contains(t, page, "Total upload size exceeds 25 MB.")
	assert.NotContains(t, page, "upload file to Leave")
	assert.Empty(t, api.messages)
}

func TestSearch(t *testing.T) {
	b := newBrowser(t, &fakeAPI{policies: twoPolicies})

	assert.Contains(t, b.get("/search").Body.String(), "Enter a search term to find policies.")

	body := b.get("/search?q=it+dep").Body.String()
	assert.Contains(t, body, "✅ Found 1 matching policies")
	assert.Contains(t, body, "Passwords")
	assert.NotContains(t, body, "Home office rules")

	assert.Contains(t, b.get("/search?q=travel").Body.String(), "No policies found matching your search.")
}

func TestSearch_BackendDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	art := kernel.NewAppRuntime(map[string]string{"API_BASE_URL": srv.URL})
	r := gin.New()
	require.NoError(t, templates.Load(r))
	r.Use(middleware.TracerMiddleware(art))
	RegisterController(r.Group("/", middleware.SessionMiddleware()), func(c *gin.Context) { c.Next() })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=hr", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "❌ API Offline")
	assert.Contains(t, body, "❌ Failed to load policies: Cannot connect to API")
}

func TestStats(t *testing.T) {
	b := newBrowser(t, &fakeAPI{stats: `{"total_policies": 3, "active_policies": 2, "expired_policies": 1,
		"policy_types": {"IT": 1, "HR": 2}, "timestamp": "2025-09-16T08:00:00"}`})

	body := b.get("/stats").Body.String()
	assert.Contains(t, body, "<h2>1</h2><p>⚠️ Expired</p>")
	assert.Contains(t, body, "<h2>2</h2><p>🏷️ Types</p>")
	assert.Less(t, strings.Index(body, "<td>HR</td>"), strings.Index(body, "<td>IT</td>"))
	assert.Contains(t, body, "width: 50%")
	assert.Contains(t, body, "2025-09-16T08:00:00 (")
}

func TestStats_Failure(t *testing.T) {
	b := newBrowser(t, &fakeAPI{})
	assert.Contains(t, b.get("/stats").Body.String(), "❌ Failed to load statistics: API Error: 500")
}
