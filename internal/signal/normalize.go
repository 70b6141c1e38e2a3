package signal

import "strings"

// normalizeText maps Arabic-Indic and Extended Arabic-Indic digits to ASCII
// and Arabic decimal/thousands separators (plus the Latin comma) to ".",
// so a single set of Latin patterns can match mixed-script messages.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= '٠' && r <= '٩': // Arabic-Indic digits
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹': // Extended Arabic-Indic digits
			b.WriteRune('0' + (r - '۰'))
		case r == '٫': // Arabic decimal separator
			b.WriteRune('.')
		case r == '٬', r == ',': // thousands separators collapse to "."
			b.WriteRune('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
