package tray

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// copyToClipboard copies text to the system clipboard
func copyToClipboard(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("copy to clipboard: no clipboard utility available")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
