// Package main provides the voicetutor CLI for exercising speech output and
// recognition outside a browser session.
//
// Usage:
//
//	voicetutor speak "Good morning"          - speak through the fallback chain
//	voicetutor speak -f request.yaml -o out  - render a request file to disk
//	voicetutor transcribe answer.wav         - send a recording to the tutor API
//	voicetutor voices --lang te-IN           - list local synthesis voices
//
// Configuration is read from the environment and .env, the same as the server.
package main

import (
	"fmt"
	"os"

	"github.com/lexiqai/voicetutor/cmd/voicetutor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
