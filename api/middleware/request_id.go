package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/schoolride/billing-backend/api/responses"
	"github.com/schoolride/billing-backend/pkg/logger"
)

const maxRequestIDLength = 128

// RequestID echoes a caller-supplied X-Request-Id or mints one, and scopes the
// logger to it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(responses.RequestIDHeader))
			if reqID == "" || len(reqID) > maxRequestIDLength {
				reqID = uuid.NewString()
			}

			w.Header().Set(responses.RequestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
