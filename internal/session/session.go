// Package session models the authenticated browsing context handed to the
// downloader by an external browser component. The tool never performs
// login itself; it only consumes the exported cookie set and user agent.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// Cookie is the serialized form of one session cookie.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Session carries the cookie set and identifying header required to fetch
// documents behind the institutional proxy.
type Session struct {
	UserAgent string   `json:"user_agent"`
	Cookies   []Cookie `json:"cookies"`
}

// Load reads a session file exported by the browser component.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("parse session file %s: %w", path, err)
	}
	if len(s.Cookies) == 0 {
		return Session{}, fmt.Errorf("session file %s contains no cookies", path)
	}
	return s, nil
}

// HTTPCookies converts the session cookies to net/http form.
func (s Session) HTTPCookies() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies
}
