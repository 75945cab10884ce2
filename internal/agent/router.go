package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/silverland/property-agent/internal/bookings"
	"github.com/silverland/property-agent/internal/leads"
	"github.com/silverland/property-agent/internal/matching"
	"github.com/silverland/property-agent/internal/observability/metrics"
	"github.com/silverland/property-agent/pkg/logging"
)

// Node identifies one state of the conversation machine.
type Node string

const (
	NodeGreet               Node = "greet"
	NodeClassifyIntent      Node = "classify_intent"
	NodeDiscoverPreferences Node = "discover_preferences"
	NodeSearchProperties    Node = "search_properties"
	NodeRecommendProperties Node = "recommend_properties"
	NodeAnswerQuestions     Node = "answer_questions"
	NodeProposeBooking      Node = "propose_booking"
	NodeCaptureLead         Node = "capture_lead"
	NodeConfirmBooking      Node = "confirm_booking"
	NodeHandleError         Node = "handle_error"
	NodeEnd                 Node = "end"
)

const (
	// maxStateRetries is how often a failing state is re-run with the same
	// input before the turn routes to handle_error.
	maxStateRetries = 2

	// maxExecutions caps state executions within one turn. Hitting it means
	// the machine is cycling; the turn is forced into recovery.
	maxExecutions = 20
)

// ErrGuardExceeded signals the per-turn execution cap fired.
var ErrGuardExceeded = errors.New("agent: state execution cap exceeded")

type classifier interface {
	Classify(ctx context.Context, state *State) Intent
}

type extractor interface {
	Extract(ctx context.Context, message string) (Preferences, error)
}

type searcher interface {
	Search(ctx context.Context, q matching.Query) ([]matching.Match, error)
}

type leadWriter interface {
	Upsert(ctx context.Context, l leads.Lead) (leads.Lead, error)
}

type booker interface {
	Book(ctx context.Context, conversationID string, projectID int64, projectName string) (bookings.Booking, error)
}

type stepFunc func(ctx context.Context, t *turn) (Node, error)

// turn carries per-turn scratch state: the replies accumulated across node
// executions and the classified intent.
type turn struct {
	state   *State
	intent  Intent
	replies []string

	// viaProposal marks the same-turn hop from propose_booking into
	// capture_lead, where the message was about a property, not a name.
	viaProposal bool
}

func (t *turn) say(msg string) {
	t.replies = append(t.replies, msg)
}

func (t *turn) reply() string {
	return strings.Join(t.replies, "\n\n")
}

// Router interprets the conversation state machine. Each step mutates state,
// optionally emits a reply fragment, and names the next node; Run drives the
// loop with retry and cycle guards.
type Router struct {
	classifier classifier
	extractor  extractor
	searcher   searcher
	leads      leadWriter
	booker     booker
	responder  *Responder
	logger     *logging.Logger
	metrics    *metrics.ConversationMetrics

	steps map[Node]stepFunc
}

// NewRouter wires the machine. metrics may be nil.
func NewRouter(
	c classifier,
	e extractor,
	s searcher,
	lw leadWriter,
	b booker,
	responder *Responder,
	logger *logging.Logger,
	m *metrics.ConversationMetrics,
) *Router {
	if c == nil || e == nil || s == nil || lw == nil || b == nil {
		panic("agent: router dependencies required")
	}
	if responder == nil {
		panic("agent: responder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Router{
		classifier: c,
		extractor:  e,
		searcher:   s,
		leads:      lw,
		booker:     b,
		responder:  responder,
		logger:     logger,
		metrics:    m,
	}
	r.steps = map[Node]stepFunc{
		NodeGreet:               r.stepGreet,
		NodeClassifyIntent:      r.stepClassifyIntent,
		NodeDiscoverPreferences: r.stepDiscoverPreferences,
		NodeSearchProperties:    r.stepSearchProperties,
		NodeRecommendProperties: r.stepRecommendProperties,
		NodeAnswerQuestions:     r.stepAnswerQuestions,
		NodeProposeBooking:      r.stepProposeBooking,
		NodeCaptureLead:         r.stepCaptureLead,
		NodeConfirmBooking:      r.stepConfirmBooking,
		NodeHandleError:         r.stepHandleError,
	}
	return r
}

// Run executes one turn to completion and returns the assistant reply. The
// caller appends the user message and persists state; Run only mutates it.
func (r *Router) Run(ctx context.Context, state *State) (string, error) {
	t := &turn{state: state}

	node := NodeClassifyIntent
	if state.UserTurns() <= 1 && state.TurnCount == 0 {
		node = NodeGreet
	}

	executions := 0
	for node != NodeEnd {
		if executions >= maxExecutions {
			r.metrics.ObserveGuardTrip()
			r.logger.Error("execution cap hit, forcing recovery",
				"conversation_id", state.ConversationID,
				"node", node,
				"error", ErrGuardExceeded)
			state.CurrentNode = string(NodeHandleError)
			state.RetryCount = 0
			t.replies = []string{r.responder.Recovery()}
			break
		}

		step, ok := r.steps[node]
		if !ok {
			return "", fmt.Errorf("agent: no step for node %q", node)
		}

		executions++
		r.metrics.ObserveStateExecution()
		state.CurrentNode = string(node)

		next, err := step(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			state.RetryCount++
			r.logger.Warn("state execution failed",
				"conversation_id", state.ConversationID,
				"node", node,
				"attempt", state.RetryCount,
				"error", err)
			if state.RetryCount > maxStateRetries {
				state.RetryCount = 0
				node = NodeHandleError
			}
			continue
		}
		node = next
	}

	if node == NodeEnd {
		state.CurrentNode = string(NodeEnd)
	}
	r.metrics.ObserveTurn(state.CurrentNode)

	reply := t.reply()
	if reply == "" {
		reply = r.responder.AskNextPreference(state.Preferences)
	}
	return reply, nil
}

// routeIntent is the transition table: a pure function from classified
// intent and state to the next node, testable without any model.
func routeIntent(intent Intent, state *State) Node {
	switch intent {
	case IntentGreeting, IntentSharePreferences:
		return NodeDiscoverPreferences
	case IntentRecommendations:
		if state.PreferencesComplete {
			return NodeSearchProperties
		}
		return NodeDiscoverPreferences
	case IntentAskQuestion:
		return NodeAnswerQuestions
	case IntentExpressInterest, IntentBookViewing:
		return NodeProposeBooking
	case IntentProvideContact:
		return NodeCaptureLead
	case IntentGoodbye:
		return NodeEnd
	default:
		// Established conversations get a real answer; early ones are
		// steered back to preference discovery.
		if state.UserTurns()-1 >= 3 {
			return NodeAnswerQuestions
		}
		return NodeDiscoverPreferences
	}
}

func (r *Router) stepGreet(ctx context.Context, t *turn) (Node, error) {
	t.intent = r.classifier.Classify(ctx, t.state)
	t.state.UserIntent = string(t.intent)

	// A first message that is only a hello gets the full greeting; one that
	// already carries substance gets a short welcome and normal routing.
	if t.intent == IntentGreeting || t.intent == IntentOther {
		t.say(r.responder.Greeting())
		return NodeEnd, nil
	}
	if t.intent == IntentGoodbye {
		t.say(r.responder.Goodbye())
		return NodeEnd, nil
	}
	t.say("Welcome to Silver Land Properties!")
	return routeIntent(t.intent, t.state), nil
}

func (r *Router) stepClassifyIntent(ctx context.Context, t *turn) (Node, error) {
	started := time.Now()
	t.intent = r.classifier.Classify(ctx, t.state)
	r.metrics.ObserveLLMLatency("intent", time.Since(started).Seconds())
	t.state.UserIntent = string(t.intent)

	if t.intent == IntentGoodbye {
		t.say(r.responder.Goodbye())
	}
	return routeIntent(t.intent, t.state), nil
}

func (r *Router) stepDiscoverPreferences(ctx context.Context, t *turn) (Node, error) {
	started := time.Now()
	update, err := r.extractor.Extract(ctx, t.state.LastUserMessage())
	r.metrics.ObserveLLMLatency("extraction", time.Since(started).Seconds())
	if err != nil {
		return "", err
	}

	t.state.Preferences.Merge(update)
	t.state.RecomputeCompleteness()

	if t.state.PreferencesComplete {
		return NodeSearchProperties, nil
	}
	t.say(r.responder.AskNextPreference(t.state.Preferences))
	return NodeEnd, nil
}

func (r *Router) stepSearchProperties(ctx context.Context, t *turn) (Node, error) {
	found, err := r.searcher.Search(ctx, searchQuery(t.state.Preferences))
	if err != nil {
		return "", err
	}

	// Replaced wholesale, never merged with earlier results.
	t.state.SearchResults = found
	if len(found) > 0 {
		r.metrics.ObserveSearchTier(string(found[0].Tier))
	}
	return NodeRecommendProperties, nil
}

func (r *Router) stepRecommendProperties(ctx context.Context, t *turn) (Node, error) {
	t.say(r.responder.PresentMatches(t.state.Preferences, t.state.SearchResults))
	return NodeEnd, nil
}

func (r *Router) stepAnswerQuestions(ctx context.Context, t *turn) (Node, error) {
	t.say(r.responder.AnswerQuestion(ctx, t.state))
	return NodeEnd, nil
}

func (r *Router) stepProposeBooking(ctx context.Context, t *turn) (Node, error) {
	if t.state.BookingID != nil {
		t.say(r.responder.ConfirmBooking(t.state.Lead.FirstName, t.state.SelectedProjectName))
		return NodeEnd, nil
	}

	if t.state.SelectedProjectID == nil {
		// A mention of any presented project wins; otherwise interest
		// defaults to the top-ranked result.
		if id, name, ok := t.state.FindPresentedProject(t.state.RecentUserText(6)); ok {
			t.state.SelectedProjectID = &id
			t.state.SelectedProjectName = name
		} else if len(t.state.SearchResults) > 0 {
			top := t.state.SearchResults[0].Listing
			t.state.SelectedProjectID = &top.ID
			t.state.SelectedProjectName = top.ProjectName
		}
	}

	if t.state.SelectedProjectID == nil {
		t.say(r.responder.ProposeBooking(""))
		return NodeEnd, nil
	}

	t.say(r.responder.ProposeBooking(t.state.SelectedProjectName))
	t.viaProposal = true
	return NodeCaptureLead, nil
}

func (r *Router) stepCaptureLead(ctx context.Context, t *turn) (Node, error) {
	update := extractLeadData(t.state.LastUserMessage(), t.state.Lead, !t.viaProposal)
	t.state.Lead.Merge(update)

	complete, missing := leads.Validate(leadRecord(t.state))
	if !complete {
		// When propose_booking already asked for name and email this turn,
		// a second prompt would just repeat it.
		if len(t.replies) == 0 {
			t.say(r.responder.AskLeadField(missing[0]))
		}
		return NodeEnd, nil
	}

	if _, err := r.leads.Upsert(ctx, leadRecord(t.state)); err != nil {
		return "", err
	}

	if t.state.SelectedProjectID != nil && t.state.BookingID == nil {
		return NodeConfirmBooking, nil
	}
	if t.state.Lead.Phone == "" && !t.state.PhoneAsked {
		t.state.PhoneAsked = true
		t.say(r.responder.AskLeadField("phone"))
		return NodeEnd, nil
	}
	if len(t.replies) == 0 {
		t.say(fmt.Sprintf("Thanks, %s! I've noted your details. Would you like "+
			"to see some properties, or book a viewing of one I've shown you?",
			t.state.Lead.FirstName))
	}
	return NodeEnd, nil
}

func (r *Router) stepConfirmBooking(ctx context.Context, t *turn) (Node, error) {
	// A conversation books each project at most once.
	if t.state.BookingID != nil {
		t.say(r.responder.ConfirmBooking(t.state.Lead.FirstName, t.state.SelectedProjectName))
		return NodeEnd, nil
	}
	if t.state.SelectedProjectID == nil {
		t.say(r.responder.ProposeBooking(""))
		return NodeEnd, nil
	}

	b, err := r.booker.Book(ctx, t.state.ConversationID, *t.state.SelectedProjectID, t.state.SelectedProjectName)
	if err != nil {
		return "", err
	}

	t.state.BookingID = &b.ID
	t.say(r.responder.ConfirmBooking(t.state.Lead.FirstName, t.state.SelectedProjectName))
	return NodeEnd, nil
}

func (r *Router) stepHandleError(ctx context.Context, t *turn) (Node, error) {
	t.replies = []string{r.responder.Recovery()}
	t.state.RetryCount = 0
	return NodeEnd, nil
}

// searchQuery maps preferences onto the matching engine's input. A waived
// budget searches without a ceiling.
func searchQuery(p Preferences) matching.Query {
	q := matching.Query{
		City:         p.City,
		Country:      p.Country,
		Bedrooms:     p.Bedrooms,
		PropertyType: p.PropertyType,
	}
	if !p.BudgetWaived {
		q.BudgetMin = p.BudgetMin
		q.BudgetMax = p.BudgetMax
	}
	return q
}

func leadRecord(state *State) leads.Lead {
	return leads.Lead{
		ConversationID: state.ConversationID,
		FirstName:      state.Lead.FirstName,
		LastName:       state.Lead.LastName,
		Email:          state.Lead.Email,
		Phone:          state.Lead.Phone,
		City:           state.Preferences.City,
		Bedrooms:       state.Preferences.Bedrooms,
		BudgetMax:      state.Preferences.BudgetMax,
		PropertyType:   state.Preferences.PropertyType,
		Source:         "chat",
	}
}
