package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header carrying the correlation id on requests and responses.
const correlationHeader = "X-Correlation-ID"

type correlationKey struct{}

// CorrelationIDFromContext extracts the correlation id from the context, or
// returns an empty string.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// CorrelationID ensures every request carries an opaque correlation id,
// reused from the incoming header when it is sane, generated otherwise. The
// id is echoed on the response, stored in the context, and attached to the
// context logger. It is never used in business decisions.
func CorrelationID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(correlationHeader)
			if !validCorrelationID(id) {
				id = uuid.New().String()
			}
			w.Header().Set(correlationHeader, id)

			ctx := context.WithValue(r.Context(), correlationKey{}, id)
			ctx = zctx.With(ctx, zap.String("correlation_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validCorrelationID accepts non-empty printable ASCII up to 128 bytes.
func validCorrelationID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
