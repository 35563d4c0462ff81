package hubspot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerSignature = "X-HubSpot-Signature-v3"
	headerTimestamp = "X-HubSpot-Request-Timestamp"
)

// SignatureValidator verifies the v3 webhook signature HubSpot attaches to
// every delivery: base64(HMAC-SHA256(secret, method + uri + body + timestamp)).
// The timestamp header is epoch milliseconds and must be within maxSkew of
// local time, so a captured delivery cannot be replayed later.
func SignatureValidator(secret string, maxSkew time.Duration) func(http.Handler) http.Handler {
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig := r.Header.Get(headerSignature)
			tsHeader := r.Header.Get(headerTimestamp)

			fail := func(code int, msg string) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(code)
				_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
			}

			if sig == "" || tsHeader == "" {
				fail(http.StatusUnauthorized, "missing signature headers")
				return
			}

			millis, err := strconv.ParseInt(tsHeader, 10, 64)
			if err != nil {
				fail(http.StatusUnauthorized, "bad timestamp")
				return
			}
			ts := time.UnixMilli(millis)
			now := time.Now()
			if ts.After(now.Add(maxSkew)) || ts.Before(now.Add(-maxSkew)) {
				fail(http.StatusUnauthorized, "stale timestamp")
				return
			}

			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				fail(http.StatusBadRequest, "read body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(strings.NewReader(string(rawBody)))

			uri := requestURI(r)
			m := hmac.New(sha256.New, []byte(secret))
			m.Write([]byte(r.Method))
			m.Write([]byte(uri))
			m.Write(rawBody)
			m.Write([]byte(tsHeader))
			want := base64.StdEncoding.EncodeToString(m.Sum(nil))

			if !hmac.Equal([]byte(sig), []byte(want)) {
				fail(http.StatusUnauthorized, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestURI reconstructs the absolute URL HubSpot signed. Deliveries arrive
// over TLS at the public hostname, so honor forwarding headers when a proxy
// sits in front.
func requestURI(r *http.Request) string {
	scheme := "https"
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	} else if r.TLS == nil {
		scheme = "http"
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = fh
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
