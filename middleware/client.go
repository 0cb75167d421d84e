package middleware

import (
	"net"
	"net/http"
	"strings"

	goCred "github.com/MrEthical07/goCred"
)

// ClientContext stores the caller's IP and user agent on the request context.
// With trustForwarded the first X-Forwarded-For entry wins over RemoteAddr;
// enable it only behind a proxy that overwrites the header.
func ClientContext(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goCred.WithClientIP(r.Context(), clientIP(r, trustForwarded))
			ctx = goCred.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
