package main

import (
	"fmt"
	"os"

	"github.com/fluxpro/relay-server-go/internal/util"
)

// Prints fresh values for the secrets the relay needs in production.
// Usage: go run scripts/gen-secrets.go >> .env
func main() {
	for _, name := range []string{"STATE_SECRET", "ENCRYPTION_KEY", "VERIFY_TOKEN", "PAYMENT_WEBHOOK_TOKEN"} {
		value, err := util.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", name, value)
	}
}
