package llm

import "sort"

const (
	RoleChat       = "chat"
	RoleQuotes     = "quotes"
	RoleReasoning  = "reasoning"
	RoleBooking    = "booking"
	RoleServices   = "services"
	RolePricing    = "pricing"
	RoleSupport    = "support"
	RoleScheduling = "scheduling"
	RoleCreative   = "creative"
	RoleAnalysis   = "analysis"

	// FallbackKey is the assignments entry used when a role's backend is
	// disabled or fails.
	FallbackKey = "fallback"
)

var instructions = map[string]string{
	RoleChat:       "You are a friendly assistant for a mobile car detailing business. Answer briefly and helpfully.",
	RoleQuotes:     "You prepare price quotes for mobile car detailing. Itemize services and give a clear total.",
	RoleReasoning:  "Think through the customer's situation step by step before recommending a detailing plan.",
	RoleBooking:    "You help customers book mobile detailing appointments. Confirm date, time, address and vehicle.",
	RoleServices:   "Explain the detailing services offered, what each includes and who it suits.",
	RolePricing:    "Answer pricing questions for detailing services. Be transparent about what affects cost.",
	RoleSupport:    "You handle customer support for a detailing business. Be empathetic and offer concrete next steps.",
	RoleScheduling: "You coordinate detailing schedules. Consider travel time, weather and technician availability.",
	RoleCreative:   "Write engaging marketing copy for a mobile car detailing business.",
	RoleAnalysis:   "Analyze business data for a detailing company and summarize actionable insights.",
}

// Roles returns every known role, sorted.
func Roles() []string {
	out := make([]string, 0, len(instructions))
	for r := range instructions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// KnownRole reports whether role has its own instruction.
func KnownRole(role string) bool {
	_, ok := instructions[role]
	return ok
}

// Instruction returns the role's instruction, or the chat instruction for
// unknown roles.
func Instruction(role string) string {
	if s, ok := instructions[role]; ok {
		return s
	}
	return instructions[RoleChat]
}

// EnhancePrompt prefixes prompt with the role instruction.
func EnhancePrompt(role, prompt string) string {
	return Instruction(role) + "\n\n" + prompt
}
