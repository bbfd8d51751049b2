package tenant

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeader is used when the resolver is built without a header name.
const DefaultHeader = "X-Tenant-ID"

// Resolver picks the tenant for a request: the header first, then the
// subdomain under RootDomain, then Default.
type Resolver struct {
	Header     string
	RootDomain string
	Default    string
}

// NewResolver normalises its inputs into a Resolver.
func NewResolver(header, rootDomain, defaultTenant string) *Resolver {
	header = strings.TrimSpace(header)
	if header == "" {
		header = DefaultHeader
	}
	return &Resolver{
		Header:     header,
		RootDomain: strings.Trim(strings.ToLower(strings.TrimSpace(rootDomain)), "."),
		Default:    strings.TrimSpace(defaultTenant),
	}
}

// Middleware stores the resolved tenant in the request context. Requests that
// resolve to nothing pass through untouched.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.Default
		}
		if id != "" {
			req = req.WithContext(With(req.Context(), id))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve returns the header or subdomain tenant, or "".
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.Header)); id != "" {
		return id
	}
	return r.subdomain(hostOnly(req.Host))
}

func (r *Resolver) subdomain(host string) string {
	host = strings.ToLower(host)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	if r.RootDomain != "" {
		rest, ok := strings.CutSuffix(host, "."+r.RootDomain)
		if !ok {
			return ""
		}
		host = rest
	}
	label, _, _ := strings.Cut(host, ".")
	return label
}

func hostOnly(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.Trim(hostport, "[]")
}
