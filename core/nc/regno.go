package nc

import (
	"fmt"
	"regexp"
	"strings"
)

const DefaultRegNoFormat = "NC-{year}-{seq:04}"

var seqToken = regexp.MustCompile(`\{seq(?::(\d+))?\}`)

// BuildRegNo expands {year} and {seq} / {seq:N} (zero padded to N digits).
func BuildRegNo(format string, year int, seq int64) string {
	if strings.TrimSpace(format) == "" {
		format = DefaultRegNoFormat
	}
	out := strings.ReplaceAll(format, "{year}", fmt.Sprintf("%d", year))
	return seqToken.ReplaceAllStringFunc(out, func(token string) string {
		m := seqToken.FindStringSubmatch(token)
		if len(m) == 2 && m[1] != "" {
			width := 0
			_, _ = fmt.Sscanf(m[1], "%d", &width)
			if width > 0 {
				return fmt.Sprintf("%0*d", width, seq)
			}
		}
		return fmt.Sprintf("%d", seq)
	})
}
