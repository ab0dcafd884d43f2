// Command davi-nfc-bridge reads NFC tags from local readers and phones and
// fans the discoveries out to WebSocket clients.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dotside-studios/davi-nfc-bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, cmd.ErrUnavailable) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
