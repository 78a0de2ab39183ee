package main

import "testing"

func TestCheckURL(t *testing.T) {
	tests := []struct {
		addr  string
		ready bool
		want  string
	}{
		{"", false, "http://localhost:8080/healthz"},
		{":9000", true, "http://localhost:9000/readyz"},
		{"127.0.0.1:8081", false, "http://127.0.0.1:8081/healthz"},
	}
	for _, tt := range tests {
		if got := checkURL(tt.addr, tt.ready); got != tt.want {
			t.Errorf("checkURL(%q, %v) = %q, want %q", tt.addr, tt.ready, got, tt.want)
		}
	}
}
