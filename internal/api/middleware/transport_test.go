package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureMetadata(t *testing.T, configure func(r *http.Request)) map[string]string {
	t.Helper()
	var meta map[string]string
	handler := TransportMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta = MetadataFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/event", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	configure(req)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return meta
}

func TestTransportMetadata_ForwardedForWins(t *testing.T) {
	meta := captureMetadata(t, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		r.Header.Set("X-Real-Ip", "198.51.100.7")
	})
	if meta[MetaOriginatorIP] != "203.0.113.9" {
		t.Errorf("originatorIp = %q", meta[MetaOriginatorIP])
	}
}

func TestTransportMetadata_RealIPFallback(t *testing.T) {
	meta := captureMetadata(t, func(r *http.Request) {
		r.Header.Set("X-Real-Ip", "198.51.100.7")
	})
	if meta[MetaOriginatorIP] != "198.51.100.7" {
		t.Errorf("originatorIp = %q", meta[MetaOriginatorIP])
	}
}

func TestTransportMetadata_PeerFallback(t *testing.T) {
	meta := captureMetadata(t, func(r *http.Request) {})
	if meta[MetaOriginatorIP] != "192.0.2.10" {
		t.Errorf("originatorIp = %q", meta[MetaOriginatorIP])
	}
}

func TestTransportMetadata_UserAgent(t *testing.T) {
	meta := captureMetadata(t, func(r *http.Request) {
		r.Header.Set("User-Agent", "producer/2.1")
	})
	if meta[MetaUserAgent] != "producer/2.1" {
		t.Errorf("userAgent = %q", meta[MetaUserAgent])
	}

	meta = captureMetadata(t, func(r *http.Request) {})
	if _, ok := meta[MetaUserAgent]; ok {
		t.Error("userAgent should be absent without a header")
	}
}

func TestMetadataFromContext_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if MetadataFromContext(req.Context()) != nil {
		t.Error("expected nil metadata without the middleware")
	}
}
