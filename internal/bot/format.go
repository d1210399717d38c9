package bot

import (
	"fmt"
	"html"
)

// Notification texts use the Telegram HTML dialect. Everything
// user-controlled goes through html.EscapeString.

func formatMergedPR(number int, title, htmlURL string) string {
	return fmt.Sprintf(`<b>PR Merged</b>: <a href="%s">#%d</a> %s`,
		htmlURL, number, html.EscapeString(title))
}
