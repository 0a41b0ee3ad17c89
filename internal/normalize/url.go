package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/url"
	"strings"
)

var errNotHTTP = errors.New("not an http(s) url")

// CanonicalURL reduces raw to a stable form so two links that differ only
// in tracking parameters, casing, fragment or trailing slash compare equal.
// It also returns the bare host with any www. prefix removed.
func CanonicalURL(raw string, tracking []string) (canonical, domain string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", "", errNotHTTP
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	q := u.Query()
	for key := range q {
		if isTracking(strings.ToLower(key), tracking) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode() // sorted by key
	u.ForceQuery = false

	return u.String(), strings.TrimPrefix(host, "www."), nil
}

func isTracking(key string, tracking []string) bool {
	for _, p := range tracking {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
		} else if key == p {
			return true
		}
	}
	return false
}

// StoryID derives a short stable id from a canonical URL.
func StoryID(canonical string) string {
	h := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(h[:8]) // 16 character hex string
}
