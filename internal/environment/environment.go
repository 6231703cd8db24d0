// Package environment decides which backend the portal talks to.
//
// The base URL is resolved in priority order:
//  1. an explicit API_URL override (used verbatim)
//  2. PROD_API_URL (or the hosted default) when running in a production context
//  3. the local development backend
//
// A production context requires both the browser-facing runtime (the ui server) and APP_ENV=production.
// Headless runs (cli commands, the mock api, tests) therefore resolve to the development backend unless API_URL is set.
package environment

import (
	"log/slog"
	"strings"
)

const (
	// DefaultProdURL is used in production when PROD_API_URL is not set
	DefaultProdURL = "https://sopra-server-451813.oa.r.appspot.com"

	// DevURL is the local development backend
	DevURL = "http://localhost:8080"

	// Production is the only APP_ENV value that enables the production backend
	Production = "production"
)

// Runtime identifies where the code is executing
type Runtime int

const (
	RuntimeHeadless Runtime = iota // cli commands, mock api, tests
	RuntimeBrowser                 // ui server rendering pages for browsers
)

var runtimeNames = []string{"headless", "browser"}

func (r Runtime) String() string {
	if r < 0 || int(r) >= len(runtimeNames) {
		return "unknown"
	}
	return runtimeNames[r]
}

// Settings holds the deploy-time inputs used to resolve the base URL
type Settings struct {
	AppEnv     string // build flag, see Production
	APIURL     string // explicit override
	ProdAPIURL string // production backend
}

// IsProduction reports whether the runtime counts as a production context.
func IsProduction(settings Settings, runtime Runtime) bool {
	if runtime != RuntimeBrowser {
		return false
	}
	return settings.AppEnv == Production
}

// ResolveBaseURL returns the base URL of the backend API. It cannot fail - missing configuration falls back to the hardcoded defaults.
func ResolveBaseURL(settings Settings, runtime Runtime, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	isProd := IsProduction(settings, runtime)
	logger.Debug("resolving api base url",
		slog.String("api_url", settings.APIURL),
		slog.String("runtime", runtime.String()),
		slog.Bool("is_production", isProd),
	)

	if strings.TrimSpace(settings.APIURL) != "" {
		return settings.APIURL
	}

	if isProd {
		if settings.ProdAPIURL != "" {
			return settings.ProdAPIURL
		}
		return DefaultProdURL
	}

	return DevURL
}
