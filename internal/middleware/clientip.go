package middleware

import (
	"net"
	"net/http"
	"strings"
)

const unknownIP = "unknown"

// ClientIP picks the caller address used for anonymous quotas: the first
// X-Forwarded-For hop, then X-Real-IP, then the socket peer. A candidate
// that is not an IP address is skipped.
func ClientIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP"), r.RemoteAddr} {
		if ip := normalizeIP(candidate); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return unknownIP
}

// normalizeIP strips IPv6 brackets and an IPv4 port so the same client
// always maps to the same key.
func normalizeIP(value string) string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return unknownIP
	}
	if strings.HasPrefix(cleaned, "[") {
		if end := strings.Index(cleaned, "]"); end >= 0 {
			if host := cleaned[1:end]; host != "" {
				return host
			}
			return unknownIP
		}
	}
	if i := strings.LastIndex(cleaned, ":"); i > 0 {
		host, port := cleaned[:i], cleaned[i+1:]
		if strings.Contains(host, ".") && isDigits(port) {
			return host
		}
	}
	return cleaned
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
