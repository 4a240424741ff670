package retry

import (
	"net/url"
	"strings"
)

// Scope identifies which retry semantics apply to a request URL.
type Scope int

const (
	// ScopeObjectStorage covers presigned bucket URLs and any other
	// non-API endpoint.
	ScopeObjectStorage Scope = iota
	// ScopeRemoteAPI covers JSON-RPC calls against the platform API.
	ScopeRemoteAPI
)

func (s Scope) String() string {
	switch s {
	case ScopeRemoteAPI:
		return "remote_api"
	default:
		return "object_storage"
	}
}

// DefaultAPIHost is the apex host of the hosted platform.
const DefaultAPIHost = "sensorgrid.io"

// Classify determines the retry scope for a URL against the default
// platform host.
func Classify(rawURL string) Scope {
	return ClassifyHost(rawURL, DefaultAPIHost)
}

// ClassifyHost determines the retry scope for a URL. A URL is RemoteAPI
// only when the scheme is http(s), the host is apiHost or a subdomain of
// it, and the path is /api or below. Everything else, including presigned
// storage URLs served from other paths on the same apex, is
// ObjectStorage. The result depends on nothing but the URL and apiHost.
func ClassifyHost(rawURL, apiHost string) Scope {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ScopeObjectStorage
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ScopeObjectStorage
	}
	host := strings.ToLower(u.Hostname())
	apex := strings.ToLower(apiHost)
	if host != apex && !strings.HasSuffix(host, "."+apex) {
		return ScopeObjectStorage
	}
	if u.Path == "/api" || strings.HasPrefix(u.Path, "/api/") {
		return ScopeRemoteAPI
	}
	return ScopeObjectStorage
}
