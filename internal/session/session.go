// internal/session/session.go
//
// Session cookie policy.
//
// Context
//   The session directives fix two lifetimes: the cookie lives until the
//   browser closes (lifetime 0), and a session idle for longer than
//   SessionIdleTimeout is dead.  Manager applies both to a cookie named
//   “opensis_session” holding the user id and the last-seen Unix time.
//
//   Storage of server-side session data is out of scope; callers keep
//   whatever they need keyed by the user id.
//
//   The cookie value is `id|unix|sig`, where sig is base64url of
//   HMAC_SHA256(key, "id|unix").  A forged or edited cookie fails the
//   signature check, and a last-seen time more than maxSkew ahead of the
//   clock is rejected.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/sisconf/internal/directive"
)

const CookieName = "opensis_session"

// maxSkew tolerates clocks slightly ahead across instances.
const maxSkew = time.Minute

// Manager issues and checks session cookies.  Safe for concurrent use.
type Manager struct {
	idle     time.Duration
	lifetime time.Duration
	key      []byte
	now      func() time.Time
}

// New builds a Manager from the session directives.  key signs every
// cookie; share it across instances (e.g. a vault: secret).  An empty key
// gets a random one, so sessions do not survive a restart.
func New(d directive.Directives, key []byte) *Manager {
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return &Manager{
		idle:     d.SessionIdleTimeout,
		lifetime: d.SessionCookieLifetime,
		key:      key,
		now:      time.Now,
	}
}

// Start sets a fresh session cookie for userID.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, userID string) {
	http.SetCookie(w, m.cookie(r, userID, m.now()))
}

// End clears the session cookie.
func (m *Manager) End(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Current returns the session's user id.
//
// ok == false when the cookie is missing, malformed, badly signed, stamped
// in the future, or idle past the timeout.
func (m *Manager) Current(r *http.Request) (userID string, ok bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, seen, ok := m.parse(c.Value)
	if !ok {
		return "", false
	}
	now := m.now()
	if seen.Sub(now) > maxSkew {
		return "", false
	}
	if m.idle > 0 && now.Sub(seen) > m.idle {
		return "", false
	}
	return id, true
}

// Touch refreshes last-seen on a live session.  It reports false, and
// clears the cookie, when the session has already expired.
func (m *Manager) Touch(w http.ResponseWriter, r *http.Request) bool {
	id, ok := m.Current(r)
	if !ok {
		m.End(w, r)
		return false
	}
	m.Start(w, r, id)
	return true
}

func (m *Manager) cookie(r *http.Request, userID string, seen time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(userID + "|" + strconv.FormatInt(seen.Unix(), 10)),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil, // only send over HTTPS
		SameSite: http.SameSiteLaxMode,
	}
	// Zero lifetime leaves Expires and MaxAge unset: a browser-session cookie.
	if m.lifetime > 0 {
		c.MaxAge = int(m.lifetime / time.Second)
		c.Expires = seen.Add(m.lifetime)
	}
	return c
}

func (m *Manager) mac(payload string) []byte {
	h := hmac.New(sha256.New, m.key)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

func (m *Manager) sign(payload string) string {
	return payload + "|" + base64.RawURLEncoding.EncodeToString(m.mac(payload))
}

func (m *Manager) parse(v string) (id string, seen time.Time, ok bool) {
	i := strings.LastIndexByte(v, '|')
	if i <= 0 {
		return "", time.Time{}, false
	}
	payload := v[:i]
	sig, err := base64.RawURLEncoding.DecodeString(v[i+1:])
	if err != nil || !hmac.Equal(sig, m.mac(payload)) {
		return "", time.Time{}, false
	}

	j := strings.LastIndexByte(payload, '|')
	if j <= 0 {
		return "", time.Time{}, false
	}
	ts, err := strconv.ParseInt(payload[j+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return payload[:j], time.Unix(ts, 0), true
}
