package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var krw = message.NewPrinter(language.Korean)

// FormatWon renders an amount the way listings show it, e.g. ₩18,500,000.
func FormatWon(amount int64) string {
	return krw.Sprintf("₩%d", amount)
}
