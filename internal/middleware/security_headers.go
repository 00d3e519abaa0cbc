package middleware

import "net/http"

const (
	// contentSecurityPolicy は自サイトのリソースとhttpsの画像（プラットフォームロゴ）のみ許可する。
	contentSecurityPolicy = "default-src 'self'; img-src https: 'self'; form-action 'self'; frame-ancestors 'none'"
	// hstsValue は1年間のHTTPS固定。
	hstsValue = "max-age=31536000; includeSubDomains"
)

// NewSecurityHeadersMiddleware はHTMLビュー向けのレスポンスヘッダーを付与するミドルウェアを返す。
// httpsで公開している場合（hsts=true）はStrict-Transport-Securityも付与する。
func NewSecurityHeadersMiddleware(hsts bool) func(next http.Handler) http.Handler {
	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
		"Content-Security-Policy": contentSecurityPolicy,
	}
	if hsts {
		headers["Strict-Transport-Security"] = hstsValue
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			// セッションに依存するページを中間キャッシュに残さない
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
