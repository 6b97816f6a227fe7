// Package dashboard assembles the month-to-date summary shown on the main page.
package dashboard

// Greeting returns the salutation for an hour of the day. Hours outside
// 0..23 yield an empty string.
func Greeting(hour int) string {
	switch {
	case hour < 0 || hour > 23:
		return ""
	case hour < 6:
		return "Доброй ночи"
	case hour < 12:
		return "Доброе утро"
	case hour < 18:
		return "Добрый день"
	default:
		return "Добрый вечер"
	}
}
