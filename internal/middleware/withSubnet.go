package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// WithSubnet lets a request through only when its X-Real-IP header holds an
// address inside the trusted CIDR. An empty or invalid CIDR trusts nobody.
func WithSubnet(cidr string, log *zap.Logger) func(next http.Handler) http.Handler {
	var trusted *net.IPNet
	if cidr != "" {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Warn("invalid trusted subnet, internal routes are closed", zap.String("subnet", cidr), zap.Error(err))
		} else {
			trusted = n
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP")))
			if trusted == nil || ip == nil || !trusted.Contains(ip) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
