package core

import "strings"

// Verdict is the outcome of classifying a provider-reported error payload.
type Verdict int

const (
	// VerdictSurface means the error is real and must reach the caller.
	VerdictSurface Verdict = iota
	// VerdictIgnore means the error is a benign busy-race artifact of
	// requesting a response while one is already in flight.
	VerdictIgnore
)

// Busy-race codes observed from the realtime providers. Anything not listed
// here is surfaced; unknown codes are never swallowed.
var ignorableCodes = map[string]struct{}{
	"conversation_already_has_active_response": {},
	"response_in_progress":                     {},
}

// ignorableMessages covers providers that omit a structured code on the
// busy-race error and only ship prose.
var ignorableMessages = []string{
	"conversation already has an active response",
}

// Classify decides whether a provider error payload is a benign busy race
// or a real error. Matching is by code first; the message fallback exists
// only for payloads that carry no code at all.
func Classify(code, message string) Verdict {
	if code != "" {
		if _, ok := ignorableCodes[code]; ok {
			return VerdictIgnore
		}
		return VerdictSurface
	}
	lower := strings.ToLower(message)
	for _, m := range ignorableMessages {
		if strings.Contains(lower, m) {
			return VerdictIgnore
		}
	}
	return VerdictSurface
}
