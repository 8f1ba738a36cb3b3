package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

const tokenPrefixLen = 16

// ClientIdentifier derives a stable, non-reversible rate-limit key for the
// caller. A bearer credential is keyed by a hashed prefix so the raw token is
// never stored or logged; otherwise the source address is used.
func ClientIdentifier(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			prefix := parts[1]
			if len(prefix) > tokenPrefixLen {
				prefix = prefix[:tokenPrefixLen]
			}
			sum := sha256.Sum256([]byte(prefix))
			return "token:" + hex.EncodeToString(sum[:])[:16]
		}
	}
	return "ip:" + SourceAddress(r)
}

// SourceAddress returns the caller's network address: first forwarded-for hop,
// else X-Real-IP, else the direct peer, else "unknown".
func SourceAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
