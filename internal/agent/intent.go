package agent

import (
	"context"
	"strings"

	"github.com/silverland/property-agent/internal/llm"
	"github.com/silverland/property-agent/pkg/logging"
)

// Intent labels a user message. The set is closed; anything else maps to
// IntentOther.
type Intent string

const (
	IntentGreeting           Intent = "greeting"
	IntentSharePreferences   Intent = "share_preferences"
	IntentAskQuestion        Intent = "ask_question"
	IntentRecommendations    Intent = "request_recommendations"
	IntentExpressInterest    Intent = "express_interest"
	IntentBookViewing        Intent = "book_viewing"
	IntentProvideContact     Intent = "provide_contact"
	IntentGoodbye            Intent = "goodbye"
	IntentOther              Intent = "other"
)

var knownIntents = map[Intent]struct{}{
	IntentGreeting:         {},
	IntentSharePreferences: {},
	IntentAskQuestion:      {},
	IntentRecommendations:  {},
	IntentExpressInterest:  {},
	IntentBookViewing:      {},
	IntentProvideContact:   {},
	IntentGoodbye:          {},
	IntentOther:            {},
}

// goodbyeWords catch farewells even when the classifier mislabels them, so a
// parting message never triggers another search.
var goodbyeWords = []string{
	"goodbye", "bye", "see you", "farewell", "thanks, that's all",
	"that's all", "talk later", "gotta go",
}

const intentContextMessages = 6

// IntentClassifier labels messages via the LLM. Purely advisory: it never
// fails the turn, degrading to IntentOther on any error.
type IntentClassifier struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

func NewIntentClassifier(client llm.Client, model string, logger *logging.Logger) *IntentClassifier {
	if client == nil {
		panic("agent: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IntentClassifier{client: client, model: model, logger: logger}
}

// Classify labels the latest user message using recent turns for context.
func (c *IntentClassifier) Classify(ctx context.Context, state *State) Intent {
	message := state.LastUserMessage()
	if message == "" {
		return IntentOther
	}

	if isGoodbye(message) {
		return IntentGoodbye
	}

	resp, err := c.client.Complete(ctx, llm.Request{
		Model:       c.model,
		System:      []string{intentPrompt},
		Messages:    intentMessages(state),
		MaxTokens:   20,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to other", "error", err)
		return IntentOther
	}

	return normalizeIntent(resp.Text)
}

func intentMessages(state *State) []llm.Message {
	recent := state.RecentMessages(intentContextMessages)
	msgs := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	// Bedrock requires the transcript to start with a user message.
	for len(msgs) > 0 && msgs[0].Role != llm.RoleUser {
		msgs = msgs[1:]
	}
	if len(msgs) == 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: state.LastUserMessage()})
	}
	return msgs
}

// normalizeIntent maps raw model output onto the closed label set. Unknown
// labels and the model's occasional "clarify" become safe defaults.
func normalizeIntent(raw string) Intent {
	label := Intent(strings.ToLower(strings.TrimSpace(raw)))
	label = Intent(strings.Trim(string(label), `"'.`))

	// Older prompt revisions emitted "clarify" for open questions.
	if label == "clarify" {
		return IntentAskQuestion
	}
	if _, ok := knownIntents[label]; ok {
		return label
	}
	return IntentOther
}

func isGoodbye(message string) bool {
	lower := strings.ToLower(message)
	for _, w := range goodbyeWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
