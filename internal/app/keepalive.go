package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

// StartKeepAlive pings the service's own health endpoint on an interval so
// free-tier hosts that idle out inactive instances keep it warm. It does
// nothing when no base URL is configured. Returns a stop function.
func StartKeepAlive(ctx context.Context, baseURL string, interval time.Duration) func() {
	if strings.TrimSpace(baseURL) == "" {
		return func() {}
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	target := strings.TrimRight(baseURL, "/") + "/api/health"
	client := &http.Client{Timeout: 30 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Printf("keep-alive: pinging %s every %s", target, interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ping(ctx, client, target)
			}
		}
	}()
	return cancel
}

func ping(ctx context.Context, client *http.Client, target string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		log.Printf("keep-alive: build request: %v", err)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("keep-alive: ping failed: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("keep-alive: unexpected status %d", resp.StatusCode)
	}
}
