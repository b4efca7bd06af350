package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFuncExplicitSettings(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "http://sproxy.local:3128", "internal.example.org")

	tests := []struct {
		name    string
		target  string
		wantURL string
	}{
		{"http goes through http proxy", "http://www.who.int/health", "http://proxy.local:3128"},
		{"https goes through https proxy", "https://www.who.int/health", "http://sproxy.local:3128"},
		{"no_proxy host bypasses", "https://internal.example.org/status", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.target, nil)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			got, err := proxy(req)
			if err != nil {
				t.Fatalf("proxy func: %v", err)
			}
			if tt.wantURL == "" {
				if got != nil {
					t.Fatalf("expected direct connection, got proxy %s", got)
				}
				return
			}
			if got == nil || got.String() != tt.wantURL {
				t.Fatalf("proxy = %v, want %s", got, tt.wantURL)
			}
		})
	}
}

func TestNewProxyFuncHTTPOnlyLeavesHTTPSAlone(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.local:3128", "", "x")

	req, err := http.NewRequest(http.MethodGet, "http://nic.in/advisory", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if got == nil || got.Host != "proxy.local:3128" {
		t.Fatalf("http request should use explicit proxy, got %v", got)
	}
}
