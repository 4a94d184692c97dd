package routes

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"transparencia-backend/shared/config"
	"transparencia-backend/shared/httpx"
	"transparencia-backend/shared/logger"
)

// Route forwards every request under Prefix to Service
type Route struct {
	Prefix  string
	Service string
}

// Table maps the public URL space onto the services
var Table = []Route{
	{Prefix: "/api/auth", Service: "auth"},
	{Prefix: "/api/admin/users", Service: "auth"},
	{Prefix: "/api/admin/dependencies", Service: "auth"},

	{Prefix: "/api/public/catalogs", Service: "document"},
	{Prefix: "/api/public/documents", Service: "document"},
	{Prefix: "/api/public/document-types", Service: "document"},
	{Prefix: "/api/public/periodicities", Service: "document"},
	{Prefix: "/api/admin/catalogs", Service: "document"},
	{Prefix: "/api/admin/documents", Service: "document"},

	{Prefix: "/api/public/participation", Service: "participation"},
	{Prefix: "/api/public/news", Service: "participation"},
	{Prefix: "/api/public/social-links", Service: "participation"},
	{Prefix: "/api/admin/participation", Service: "participation"},
	{Prefix: "/api/admin/news", Service: "participation"},
	{Prefix: "/api/admin/social-links", Service: "participation"},
	{Prefix: "/ws/participation", Service: "participation"},
}

// ServiceURLs returns service URLs from configuration
func ServiceURLs(cfg *config.Config) map[string]string {
	return map[string]string{
		"auth":          cfg.AuthServiceURL,
		"document":      cfg.DocumentServiceURL,
		"participation": cfg.ParticipationServiceURL,
	}
}

// Register mounts one reverse proxy per service for every route of table.
// Internal service endpoints are never exposed.
func Register(r gin.IRouter, table []Route, services map[string]string) error {
	proxies := make(map[string]*httputil.ReverseProxy, len(services))
	for name, raw := range services {
		target, err := url.Parse(raw)
		if err != nil || target.Host == "" {
			return fmt.Errorf("invalid URL %q for service %s", raw, name)
		}
		proxies[name] = newProxy(name, target)
	}

	for _, route := range table {
		proxy, ok := proxies[route.Service]
		if !ok {
			return fmt.Errorf("route %s: unknown service %s", route.Prefix, route.Service)
		}
		h := ProxyToService(proxy)
		prefix := strings.TrimSuffix(route.Prefix, "/")
		r.Any(prefix, h)
		r.Any(prefix+"/*path", h)
	}
	return nil
}

// ProxyToService hands the request to proxy
func ProxyToService(proxy *httputil.ReverseProxy) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func newProxy(service string, target *url.URL) *httputil.ReverseProxy {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		// the gateway already answers with the request id it forwarded
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del(httpx.HeaderRequestID)
			return nil
		},
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.L().Error("upstream request failed", "service", service, "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = fmt.Fprintf(w, `{"error":"service %s unavailable"}`, service)
	}
	return proxy
}
