package flow

import (
	"strconv"
	"strings"
)

// IntentKind is the typed meaning extracted from an inbound reply.
type IntentKind string

const (
	IntentUnknown    IntentKind = "unknown"
	IntentYes        IntentKind = "yes"
	IntentNo         IntentKind = "no"
	IntentDigits     IntentKind = "digits"
	IntentCancel     IntentKind = "cancel"
	IntentReschedule IntentKind = "reschedule"
	IntentBook       IntentKind = "book"
	IntentHelp       IntentKind = "help"
)

// Intent is the parsed meaning of an inbound message. Digits is populated only
// for IntentDigits and preserves the sender's order, deduplicated.
type Intent struct {
	Kind   IntentKind
	Digits []int
}

// ParseIntent extracts a typed intent from a raw inbound body. Keywords win
// over digits so "cancel 1" cancels rather than selecting option 1. Matching
// is token based: "now" never reads as "no".
func ParseIntent(body string) Intent {
	tokens := tokenize(body)
	if len(tokens) == 0 {
		return Intent{Kind: IntentUnknown}
	}

	for _, tok := range tokens {
		switch tok {
		case "cancel", "stop":
			return Intent{Kind: IntentCancel}
		case "reschedule", "change", "move":
			return Intent{Kind: IntentReschedule}
		case "help", "menu", "options":
			return Intent{Kind: IntentHelp}
		case "book", "start", "restart":
			return Intent{Kind: IntentBook}
		}
	}

	if digits := parseDigits(tokens); len(digits) > 0 {
		return Intent{Kind: IntentDigits, Digits: digits}
	}

	for _, tok := range tokens {
		switch tok {
		case "yes", "yeah", "yep", "y", "sure", "ok", "okay":
			return Intent{Kind: IntentYes}
		case "no", "nope", "n", "nah":
			return Intent{Kind: IntentNo}
		}
	}

	return Intent{Kind: IntentUnknown}
}

// parseDigits accepts single-digit selections, including multi-select replies
// like "1,3,7" or "1 3 7". Any non-digit token disqualifies the digit reading.
func parseDigits(tokens []string) []int {
	digits := make([]int, 0, len(tokens))
	seen := make(map[int]bool)
	for _, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 || n > 9 {
			return nil
		}
		if !seen[n] {
			seen[n] = true
			digits = append(digits, n)
		}
	}
	return digits
}

func tokenize(body string) []string {
	lower := strings.ToLower(body)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
