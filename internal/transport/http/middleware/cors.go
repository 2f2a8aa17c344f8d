package middleware

import (
	"net/http"
	"slices"

	"github.com/IgorGrieder/linkstats/pkg/httputils"
	"github.com/rs/cors"
)

// CORS builds the cross-origin handler for the API. An empty list or a "*"
// entry allows every origin. Credentials are never allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		origins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead},
		AllowedHeaders: []string{
			"Content-Type",
			"Accept",
			httputils.CorrelationIDHeader,
			"traceparent",
			"tracestate",
			"baggage",
		},
		ExposedHeaders: []string{httputils.CorrelationIDHeader, "Location"},
		MaxAge:         600,
	})
	return c.Handler
}
