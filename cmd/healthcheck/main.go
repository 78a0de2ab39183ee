// Command healthcheck queries the diagnostics server for container health checks.
// It exits non-zero unless the checked endpoint answers 200.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	ready := flag.Bool("ready", false, "check /readyz instead of /healthz")
	flag.Parse()

	client := &http.Client{Timeout: 3 * time.Second}
	ctx := context.Background()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL(os.Getenv("HTTP_ADDR"), *ready), nil)
	if err != nil {
		os.Exit(1)
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

// checkURL maps an HTTP_ADDR listen address to a local URL.
func checkURL(addr string, ready bool) string {
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	path := "/healthz"
	if ready {
		path = "/readyz"
	}
	return "http://" + addr + path
}
