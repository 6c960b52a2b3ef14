// Package main is the container health probe. It exits 0 when the server's
// liveness endpoint answers 200.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/coursematch/coursematch-web/internal/config"
)

func main() {
	port := os.Getenv(config.EnvPort)
	if port == "" {
		port = "3000"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%s/livez", port)

	resp, err := client.Get(url)
	if err != nil {
		os.Exit(1)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
