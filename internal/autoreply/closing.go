package autoreply

import "strings"

// QuoteReadyMarker is appended by the model to a reply that wraps up the
// requirements interview. It never reaches the visitor.
const QuoteReadyMarker = "[[QUOTE_READY]]"

// DetectClosing reports whether reply closes the conversation and returns the
// text to store. A reply closes when it carries QuoteReadyMarker, mentions
// that the sales team will reach out, or thanks the visitor for a custom
// quote request.
func DetectClosing(reply string) (string, bool) {
	text := reply
	marked := strings.Contains(text, QuoteReadyMarker)
	if marked {
		text = strings.ReplaceAll(text, QuoteReadyMarker, "")
	}
	text = strings.TrimSpace(text)

	if marked {
		return text, true
	}
	if strings.Contains(text, "sales team will reach out") {
		return text, true
	}
	if strings.Contains(text, "custom quote") && strings.Contains(text, "Thank you") {
		return text, true
	}
	return text, false
}
