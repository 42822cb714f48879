// Command framer runs the frame gathering and regularizing engine over
// audio files and RTP dumps.
//
// Usage:
//
//	framer [flags] <command> [args]
//
// Commands:
//
//	convert      - decode a WAV or MP3 file and record it at another rate
//	packetize    - encode a file and pace it into RTP packets
//	depacketize  - decode an RTP dump back to WAV
//	mix          - mix two files the way a call recording mixes both legs
package main

import (
	"fmt"
	"os"

	"github.com/pidato/framing/cmd/framer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
