package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel trims a categorical value and puts it in Unicode NFC form so
// that composed and decomposed spellings of the same label compare equal.
func NormalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}
