package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/silverland/property-agent/internal/llm"
	"github.com/silverland/property-agent/internal/matching"
	"github.com/silverland/property-agent/pkg/logging"
)

const responderContextMessages = 10

// Responder produces the assistant's replies. Informational answers go
// through the LLM; everything with fixed content (follow-up questions,
// result lists, prompts for contact fields) is rendered deterministically so
// a model outage degrades wording, never correctness.
type Responder struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

func NewResponder(client llm.Client, model string, logger *logging.Logger) *Responder {
	if client == nil {
		panic("agent: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{client: client, model: model, logger: logger}
}

// Greeting opens a new conversation.
func (r *Responder) Greeting() string {
	return "Hello! Welcome to Silver Land Properties. I can help you find your " +
		"ideal home. Which city are you looking to buy in, and do you have a " +
		"budget or bedroom count in mind?"
}

// AskNextPreference asks for the most important missing preference field.
func (r *Responder) AskNextPreference(p Preferences) string {
	if p.City == "" {
		return "Which city would you like to buy in?"
	}
	return "Great. And what's your budget range, or how many bedrooms do you need?"
}

// PresentMatches renders the ranked results, disclosing relaxed tiers.
func (r *Responder) PresentMatches(p Preferences, matches []matching.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf(
			"I couldn't find any properties matching your criteria in %s right now. "+
				"Would you like to adjust your budget or try a nearby area?", p.City)
	}

	var b strings.Builder
	switch matches[0].Tier {
	case matching.TierExact:
		b.WriteString("Here's what I found for you:\n")
	case matching.TierClose:
		b.WriteString("Nothing matched your exact criteria, but these close options " +
			"are worth a look:\n")
	case matching.TierAlternative:
		b.WriteString(fmt.Sprintf("I couldn't find a match in %s, but here are some "+
			"alternatives in nearby areas:\n", p.City))
	}

	for i, m := range matches {
		if i >= 5 {
			b.WriteString(fmt.Sprintf("...and %d more.\n", len(matches)-i))
			break
		}
		b.WriteString("- " + describeListing(m) + "\n")
	}
	b.WriteString("Would you like more details on any of these, or shall I arrange a viewing?")
	return b.String()
}

func describeListing(m matching.Match) string {
	l := m.Listing
	parts := []string{l.ProjectName}
	if l.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedrooms", *l.Bedrooms))
	}
	parts = append(parts, l.City)
	if l.PriceUSD != nil {
		parts = append(parts, fmt.Sprintf("$%s", formatPrice(*l.PriceUSD)))
	}
	return strings.Join(parts, ", ")
}

func formatPrice(v float64) string {
	switch {
	case v >= 1_000_000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", v/1_000_000), ".0") + "M"
	case v >= 1_000:
		return fmt.Sprintf("%.0fK", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// AnswerQuestion replies to an informational message through the LLM with
// the known listings as grounding. A model failure returns an apology rather
// than an error; answering is never worth failing the turn.
func (r *Responder) AnswerQuestion(ctx context.Context, state *State) string {
	system := []string{assistantPersona}
	if len(state.SearchResults) > 0 {
		system = append(system, "Properties already shown to this user:\n"+listingContext(state.SearchResults))
	}

	resp, err := r.client.Complete(ctx, llm.Request{
		Model:       r.model,
		System:      system,
		Messages:    chatMessages(state),
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil {
		r.logger.Warn("answer generation failed, using fallback", "error", err)
		return "I'm sorry, I'm having trouble answering that right now. Could you " +
			"rephrase, or would you like to see some properties instead?"
	}
	return strings.TrimSpace(resp.Text)
}

func listingContext(matches []matching.Match) string {
	var b strings.Builder
	for _, m := range matches {
		b.WriteString("- " + describeListing(m) + "\n")
	}
	return b.String()
}

func chatMessages(state *State) []llm.Message {
	recent := state.RecentMessages(responderContextMessages)
	msgs := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	for len(msgs) > 0 && msgs[0].Role != llm.RoleUser {
		msgs = msgs[1:]
	}
	if len(msgs) == 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: state.LastUserMessage()})
	}
	return msgs
}

// ProposeBooking pitches a viewing for the selected project.
func (r *Responder) ProposeBooking(projectName string) string {
	if projectName == "" {
		return "Which of the properties I showed you would you like to view? " +
			"Just tell me the project name."
	}
	return fmt.Sprintf("Excellent choice! I'd be happy to arrange a viewing of %s. "+
		"To set that up, could I get your full name and email?", projectName)
}

// AskLeadField prompts for one missing contact field.
func (r *Responder) AskLeadField(field string) string {
	switch field {
	case "first_name":
		return "Could I have your first name, please?"
	case "last_name":
		return "Thanks! And your last name?"
	case "email":
		return "Great. What's the best email address to reach you on?"
	default:
		return "Could you share a phone number as well? You can skip this if you prefer."
	}
}

// ConfirmBooking announces the created booking.
func (r *Responder) ConfirmBooking(firstName, projectName string) string {
	return fmt.Sprintf("All set, %s! Your viewing request for %s is confirmed. "+
		"One of our consultants will contact you shortly to arrange a time. "+
		"Is there anything else I can help with?", firstName, projectName)
}

// Recovery is the generic message after an unrecoverable turn failure.
func (r *Responder) Recovery() string {
	return "I'm sorry, something went wrong on my end. Let's start over: " +
		"what kind of property are you looking for?"
}

// Goodbye closes the conversation.
func (r *Responder) Goodbye() string {
	return "Thank you for chatting with Silver Land Properties! Feel free to " +
		"come back any time. Have a wonderful day!"
}
