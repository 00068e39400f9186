package middleware

import "net/http"

// NewAPIHeadersMiddleware はJSON APIのレスポンスに共通ヘッダーを付与するミドルウェアを返す。
// 時刻表は刻々と変わるため、中間キャッシュには保存させない。
func NewAPIHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
