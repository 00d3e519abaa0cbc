package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedSpanRoute はルーティングされなかったリクエストのスパン名に使う。
const unmatchedSpanRoute = "unmatched"

// NewRouteSpanMiddleware はルーティング後にotelhttpのスパン名をchiのルートパターンに置き換える。
// スパン名がslugごとに分かれないよう、URLのパスではなく "GET /game/{slug}" の形にする。
func NewRouteSpanMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			span := trace.SpanFromContext(r.Context())
			if !span.IsRecording() {
				return
			}

			route := unmatchedSpanRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		})
	}
}
