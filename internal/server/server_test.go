package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/chat"
	"github.com/Zachkp/portfolio/internal/github"
	"github.com/Zachkp/portfolio/internal/schedule"
	"github.com/Zachkp/portfolio/internal/stats"
	"github.com/Zachkp/portfolio/internal/widget"
)

const testAdminToken = "secret-admin-token"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, mutate func(*Deps)) (*Server, *schedule.Fake) {
	t.Helper()
	clock := schedule.NewFake()
	d := Deps{
		Logger:     zerolog.Nop(),
		Profile:    github.Default(),
		AboutMe:    "I build things.",
		Defaults:   widget.DefaultOptions(),
		Scheduler:  clock,
		AdminToken: testAdminToken,
	}
	if mutate != nil {
		mutate(&d)
	}
	s := New(d)
	t.Cleanup(s.Registry().Close)
	return s, clock
}

func do(t *testing.T, s *Server, method, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func mountWidget(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	rec := do(t, s, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == widgetCookie {
			return c
		}
	}
	t.Fatal("widget cookie not set")
	return nil
}

func widgetState(t *testing.T, s *Server, cookie *http.Cookie) widget.Snapshot {
	t.Helper()
	rec := do(t, s, http.MethodGet, "/widget/state", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap widget.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func submit(t *testing.T, s *Server, cookie *http.Cookie, text string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, http.MethodPost, "/widget/messages", url.Values{"message": {text}}, cookie)
}

func TestHomeMountsOneWidgetPerSession(t *testing.T) {
	s, _ := newTestServer(t, nil)
	cookie := mountWidget(t, s)
	assert.Equal(t, 1, s.Registry().Len())

	rec := do(t, s, http.MethodGet, "/", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ask me about my portfolio!")
	assert.Contains(t, rec.Body.String(), "I build things.")
	assert.Equal(t, 1, s.Registry().Len())
}

func TestHomeAppliesQueryOptions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/?primaryColor=purple&theme=dark", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bg-purple-500")

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == widgetCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	snap := widgetState(t, s, cookie)
	assert.Equal(t, widget.Purple, snap.Options.PrimaryColor)
	assert.Equal(t, widget.Dark, snap.Options.Theme)
}

func TestOpenSubmitAndDelayedReply(t *testing.T) {
	s, clock := newTestServer(t, nil)
	cookie := mountWidget(t, s)

	rec := do(t, s, http.MethodPost, "/widget/open", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Portfolio Assistant")
	assert.Contains(t, rec.Body.String(), chat.Greeting)

	rec = submit(t, s, cookie, "Hello there")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello there")
	assert.NotContains(t, rec.Body.String(), "Nice to meet you")

	snap := widgetState(t, s, cookie)
	assert.Equal(t, "", snap.Input)
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, []chat.Message{
		{Text: chat.Greeting, IsBot: true},
		{Text: "Hello there"},
	}, snap.Transcript)

	clock.Advance(chat.DefaultReplyDelay)

	rec = do(t, s, http.MethodGet, "/widget/transcript", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello! Nice to meet you!")

	snap = widgetState(t, s, cookie)
	require.Len(t, snap.Transcript, 3)
	assert.Equal(t, chat.Message{Text: "Hello! Nice to meet you!", IsBot: true}, snap.Transcript[2])
}

func TestWhitespaceSubmitIsIgnored(t *testing.T) {
	s, clock := newTestServer(t, nil)
	cookie := mountWidget(t, s)
	do(t, s, http.MethodPost, "/widget/open", nil, cookie)

	rec := submit(t, s, cookie, "   ")
	require.Equal(t, http.StatusOK, rec.Code)
	clock.Advance(time.Minute)

	snap := widgetState(t, s, cookie)
	assert.Len(t, snap.Transcript, 1)
	assert.Equal(t, 0, snap.Pending)
}

func TestInputThenSubmitUsesPendingText(t *testing.T) {
	s, clock := newTestServer(t, nil)
	cookie := mountWidget(t, s)
	do(t, s, http.MethodPost, "/widget/open", nil, cookie)

	rec := do(t, s, http.MethodPost, "/widget/input", url.Values{"message": {"Can I see your work?"}}, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Can I see your work?", widgetState(t, s, cookie).Input)

	rec = do(t, s, http.MethodPost, "/widget/messages", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	clock.Advance(chat.DefaultReplyDelay)

	snap := widgetState(t, s, cookie)
	require.Len(t, snap.Transcript, 3)
	assert.Equal(t, "Check out my portfolio projects section!", snap.Transcript[2].Text)
}

func TestCloseKeepsHistory(t *testing.T) {
	s, _ := newTestServer(t, nil)
	cookie := mountWidget(t, s)
	do(t, s, http.MethodPost, "/widget/open", nil, cookie)

	rec := do(t, s, http.MethodPost, "/widget/close", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ask me about my portfolio!")
	assert.Equal(t, "closed", widgetState(t, s, cookie).State)

	do(t, s, http.MethodPost, "/widget/open", nil, cookie)
	snap := widgetState(t, s, cookie)
	assert.Equal(t, "open-active", snap.State)
	assert.Len(t, snap.Transcript, 1)
}

func TestReloadWhileOpenShowsPanel(t *testing.T) {
	s, _ := newTestServer(t, nil)
	cookie := mountWidget(t, s)
	do(t, s, http.MethodPost, "/widget/open", nil, cookie)
	assert.False(t, widgetState(t, s, cookie).Presence.Visible)

	rec := do(t, s, http.MethodGet, "/", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Portfolio Assistant")
	assert.NotContains(t, rec.Body.String(), "Ask me about my portfolio!")

	do(t, s, http.MethodPost, "/widget/close", nil, cookie)
	assert.True(t, widgetState(t, s, cookie).Presence.Visible)
}

func TestUnmountBeforeReplySuppressesIt(t *testing.T) {
	s, clock := newTestServer(t, nil)
	cookie := mountWidget(t, s)
	do(t, s, http.MethodPost, "/widget/open", nil, cookie)
	submit(t, s, cookie, "hello")

	w, ok := s.Registry().Get(cookie.Value)
	require.True(t, ok)

	rec := do(t, s, http.MethodPost, "/widget/unmount", nil, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.Registry().Len())

	clock.Advance(time.Minute)
	assert.Len(t, w.Transcript(), 2)
	assert.Equal(t, 0, clock.Pending())

	rec = do(t, s, http.MethodGet, "/widget/state", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestUnknownWidget(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/widget/open", nil, &http.Cookie{Name: widgetCookie, Value: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/widget/open", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/widget/unmount", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSubmitRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(d *Deps) { d.RateLimitPerMinute = 1 })
	cookie := mountWidget(t, s)
	do(t, s, http.MethodPost, "/widget/open", nil, cookie)

	assert.Equal(t, http.StatusOK, submit(t, s, cookie, "one").Code)
	rec := submit(t, s, cookie, "two")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Len(t, widgetState(t, s, cookie).Transcript, 2)
}

func TestGitHubContent(t *testing.T) {
	s, _ := newTestServer(t, func(d *Deps) { d.Profile = github.Default().WithUsername("octocat") })
	rec := do(t, s, http.MethodGet, "/github-content", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "https://ghchart.rshah.org/octocat")
	assert.Contains(t, body, "https://github.com/octocat/zach-dev")
	assert.Contains(t, body, "View Full GitHub Profile")
}

func TestPrivacyAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)
	mountWidget(t, s)

	rec := do(t, s, http.MethodGet, "/privacy", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "never stored")

	rec = do(t, s, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portfolio_widget_activity_total")
}

func TestAdminStats(t *testing.T) {
	st, err := stats.Open(context.Background(), filepath.Join(t.TempDir(), "stats.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Record(context.Background(), "w", stats.KindReply, 3))

	s, _ := newTestServer(t, func(d *Deps) { d.Stats = st })
	mountWidget(t, s)

	rec := do(t, s, http.MethodGet, "/admin/api/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ActiveWidgets int              `json:"active_widgets"`
		RepliesByRule map[string]int64 `json:"replies_by_rule"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.ActiveWidgets)
	assert.Equal(t, int64(1), body.RepliesByRule["3"])

	req = httptest.NewRequest(http.MethodGet, "/admin/export/stats", nil)
	req.AddCookie(&http.Cookie{Name: "admin_token", Value: testAdminToken})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "widget-stats.json")
}

func TestAdminWithoutStats(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventsStreamBlink(t *testing.T) {
	s, clock := newTestServer(t, nil)
	cookie := mountWidget(t, s)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/widget/events", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	clock.Advance(3000 * time.Millisecond)

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	require.Equal(t, "blink", event)

	var e widget.Event
	require.NoError(t, json.Unmarshal([]byte(data), &e))
	require.NotNil(t, e.Presence)
	assert.True(t, e.Presence.Blinking)
}
