package client

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SavedSession is the on-disk form of a logged-in session.
type SavedSession struct {
	Server   string        `yaml:"server"`
	Username string        `yaml:"username,omitempty"`
	SavedAt  time.Time     `yaml:"saved_at"`
	Cookies  []SavedCookie `yaml:"cookies"`
}

type SavedCookie struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Save captures the jar's cookies for the backend.
func (c *Client) Save(username string) SavedSession {
	s := SavedSession{
		Server:   c.BaseURL(),
		Username: username,
		SavedAt:  time.Now().UTC(),
	}
	for _, ck := range c.Cookies() {
		s.Cookies = append(s.Cookies, SavedCookie{Name: ck.Name, Value: ck.Value})
	}
	return s
}

// Restore loads saved cookies into the jar. Sessions saved for another
// server are ignored and Restore reports false.
func (c *Client) Restore(s SavedSession) bool {
	if strings.TrimRight(s.Server, "/") != c.BaseURL() || len(s.Cookies) == 0 {
		return false
	}
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, ck := range s.Cookies {
		cookies = append(cookies, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	c.SetCookies(cookies)
	return true
}

// LoadSessionFile reads a saved session. A missing file is not an error and
// yields nil.
func LoadSessionFile(path string) (*SavedSession, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session file")
	}
	var s SavedSession
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrapf(err, "parse session file %s", path)
	}
	return &s, nil
}

func SaveSessionFile(path string, s SavedSession) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return errors.Wrap(err, "write session file")
	}
	return nil
}

func RemoveSessionFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove session file")
	}
	return nil
}
