package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions describes how the session cookie is issued. The value is
// always the bare session id.
type CookieOptions struct {
	Name       string
	MaxAge     time.Duration
	Production bool
}

func (o CookieOptions) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   o.Production,
		SameSite: http.SameSiteLaxMode,
	}
	if o.Production {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

func (o CookieOptions) Set(w http.ResponseWriter, sessionID string) {
	o.dropPending(w)
	http.SetCookie(w, o.cookie(sessionID, int(o.MaxAge/time.Second)))
}

func (o CookieOptions) Clear(w http.ResponseWriter) {
	o.dropPending(w)
	http.SetCookie(w, o.cookie("", -1))
}

// dropPending removes a session cookie queued earlier in the same response,
// e.g. the one issued on arrival when the handler then rotates the session.
func (o CookieOptions) dropPending(w http.ResponseWriter) {
	h := w.Header()
	pending := h.Values("Set-Cookie")
	if len(pending) == 0 {
		return
	}
	h.Del("Set-Cookie")
	prefix := o.Name + "="
	for _, v := range pending {
		if !strings.HasPrefix(v, prefix) {
			h.Add("Set-Cookie", v)
		}
	}
}
