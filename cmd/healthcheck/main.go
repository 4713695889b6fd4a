// Command healthcheck probes the local gateway's liveness endpoint and exits
// non-zero when it is not healthy. It is used as the container HEALTHCHECK.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/garyellow/erp-gateway-go/internal/config"
)

func main() {
	port := os.Getenv(config.EnvPort)
	if port == "" {
		port = "10000"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/livez", port))
	if err != nil {
		os.Exit(1)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
