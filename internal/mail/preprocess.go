package mail

import (
	"strings"
)

// footerPrefixes mark signature and footer lines stripped before parsing.
var footerPrefixes = []string{
	"--",
	"Regards,",
	"Best,",
	"Best regards,",
	"Kind regards,",
	"Sincerely,",
	"Sent from my",
}

// Preprocess normalizes an email body before extraction or template
// sniffing: trims surrounding whitespace and drops signature lines.
func Preprocess(body string) string {
	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if hasFooterPrefix(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func hasFooterPrefix(line string) bool {
	for _, prefix := range footerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
