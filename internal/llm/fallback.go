package llm

import (
	"net/http"
	"strings"
)

// Failure classifies why a routed request could not be answered.
type Failure string

const (
	FailureRateLimited Failure = "rate_limited"
	FailureUnavailable Failure = "unavailable"
	FailureNetwork     Failure = "network"
)

// Classify maps an upstream error onto a Failure and the status to answer with.
// A timeout got no response, so it is a network failure.
func Classify(err error) (Failure, int) {
	status := HTTPStatus(err)
	switch {
	case status == http.StatusGatewayTimeout:
		return FailureNetwork, http.StatusBadGateway
	case status == http.StatusTooManyRequests:
		return FailureRateLimited, http.StatusTooManyRequests
	case status >= 500:
		return FailureUnavailable, http.StatusServiceUnavailable
	default:
		return FailureNetwork, http.StatusBadGateway
	}
}

var friendly = map[Failure]string{
	FailureRateLimited: "We're getting a lot of questions right now. Please try again in a minute.",
	FailureUnavailable: "Our assistant is temporarily unavailable. Please try again shortly.",
	FailureNetwork:     "We couldn't reach our assistant. Please check your connection and try again.",
}

var friendlyByRole = map[string]string{
	RoleBooking:    " You can also call us directly to book.",
	RoleScheduling: " You can also call us directly to book.",
	RoleQuotes:     " Our standard price list is available on the services page.",
	RolePricing:    " Our standard price list is available on the services page.",
	RoleSupport:    " For urgent issues, please call or email our support team.",
}

// FriendlyMessage returns user-facing copy for a failure.
func FriendlyMessage(role string, f Failure) string {
	msg, ok := friendly[f]
	if !ok {
		msg = friendly[FailureNetwork]
	}
	return msg + friendlyByRole[role]
}

var smartReplies = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"price", "cost", "how much", "quote", "rate"},
		reply:    "Our packages start with an exterior wash and go up to full interior and exterior details. Share your vehicle type and we'll send an exact quote.",
	},
	{
		keywords: []string{"book", "appointment", "schedule", "available", "availability", "when"},
		reply:    "We'd love to get you on the calendar. Let us know your preferred date, time and address and we'll confirm your appointment.",
	},
	{
		keywords: []string{"service", "wax", "interior", "exterior", "detail", "ceramic", "wash"},
		reply:    "We offer exterior washes, waxing, interior deep cleans and full details. Tell us about your vehicle and we'll recommend the right package.",
	},
	{
		keywords: []string{"where", "location", "area", "come to", "mobile", "address"},
		reply:    "We're fully mobile and come to your home or office. Send us your address to confirm it's in our service area.",
	},
}

const genericReply = "Thanks for reaching out! Our team will get back to you shortly. In the meantime, feel free to browse our services."

// SmartReply builds a local answer from keywords when no backend could answer.
func SmartReply(prompt string) string {
	text := strings.ToLower(prompt)
	for _, r := range smartReplies {
		for _, k := range r.keywords {
			if strings.Contains(text, k) {
				return r.reply
			}
		}
	}
	return genericReply
}
