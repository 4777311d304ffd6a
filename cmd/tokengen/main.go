package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

func main() {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	token := hex.EncodeToString(buf)

	fmt.Printf("Collector token: %s\n", token)
	fmt.Println("\nAdd this to your config.yaml (and configure the same value on the collector):")
	fmt.Printf("  collector:\n")
	fmt.Printf("    token: \"%s\"\n", token)
}
