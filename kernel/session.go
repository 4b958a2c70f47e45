package kernel

import (
	"net/http"
	"time"
)

const SESSION_COOKIE = "console_session"

// SaveSession persists the request's session and pushes its expiry forward,
// on the server and in the browser.
func (rt *RequestRuntime) SaveSession() error {
	if rt.Session == nil {
		return nil
	}
	rt.StepInto("session.save")
	rt.Session.ExpiresAt = time.Now().Add(rt.AppRuntime.SessionTTL)
	if err := rt.Store.SaveSession(rt.SpanContext, rt.Session); err != nil {
		return rt.MakeErrorf("failed to save session: %w", err)
	}
	rt.SetSessionCookie()
	rt.EndBlock()
	return nil
}

// SetSessionCookie (re)issues the session cookie with a full SESSION_TTL.
// It does nothing once the response headers are out.
func (rt *RequestRuntime) SetSessionCookie() {
	c := rt.RequestContext
	if rt.SessionToken == "" || c.Writer.Written() {
		return
	}
	art := rt.AppRuntime
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SESSION_COOKIE, rt.SessionToken, int(art.SessionTTL/time.Second), "/", "", art.IsProduction(), true)
}
