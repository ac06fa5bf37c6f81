package observability

import (
	"net"
	"net/http"
	"strings"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderDeviceID  = "X-Device-Id"
)

// Client describes the remote end of an HTTP or websocket request.
type Client struct {
	RequestID string
	DeviceID  string
	IP        string
	UserAgent string
}

// ClientFromRequest collects the client identifiers carried by r.
func ClientFromRequest(r *http.Request) Client {
	return Client{
		RequestID: RequestIDFromRequest(r),
		DeviceID:  strings.TrimSpace(r.Header.Get(HeaderDeviceID)),
		IP:        remoteIP(r),
		UserAgent: r.UserAgent(),
	}
}

func RequestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderRequestID))
}

// remoteIP prefers proxy headers: X-Real-Ip, then the first X-Forwarded-For hop.
func remoteIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
