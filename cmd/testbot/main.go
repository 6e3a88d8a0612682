// Command testbot runs the relay pipeline from the command line, without Telegram.
//
// Usage:
//
//	./testbot send "https://youtu.be/dQw4w9WgXcQ" \
//	  --check-outcome delivered \
//	  --output json
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already printed the error
		os.Exit(1)
	}
}
