package outwriter

import (
	"os"

	"github.com/huangsam/chartkit/internal/contract"
	"golang.org/x/term"
)

// GetMaxTableKeyWidth calculates the maximum width for bucket keys in table output
// based on terminal width and the number of series columns.
func GetMaxTableKeyWidth(cfg *contract.Config, seriesCount int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80
		} else {
			termWidth = detectedWidth
		}
	}

	// One value column per series with borders/padding
	baseWidth := 14 * seriesCount

	// Reserve space for table borders, separators, and padding
	baseWidth += 10

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
