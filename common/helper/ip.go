package helper

import (
	"net"
	"net/http"
	"strings"
)

// Header may return multiple IP addresses in the format: "client IP, proxy 1 IP, proxy 2 IP", so we take the first one.
var xForwardedForHeader = http.CanonicalHeaderKey("X-Forwarded-For")

// GetUserIP 获取客户端地址：优先 X-Forwarded-For 的第一个地址，其次 RemoteAddr
func GetUserIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xff := r.Header.Get(xForwardedForHeader); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
