package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/silverland/property-agent/internal/llm"
	"github.com/silverland/property-agent/pkg/logging"
)

// Phrases that mean the buyer is declining to state a budget rather than
// omitting one.
var noBudgetPhrases = []string{
	"no budget",
	"budget is not an issue",
	"budget isn't an issue",
	"budget is no issue",
	"money is not an issue",
	"money is no object",
	"no limit",
	"no maximum",
	"any budget",
	"price doesn't matter",
	"price does not matter",
}

var (
	bedroomsPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s*[- ]?\s*(?:bed(?:room)?s?|br)\b`)
	moneyPattern    = regexp.MustCompile(`(?i)\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k|m|mm|million|thousand)?\b`)
	rangePattern    = regexp.MustCompile(`(?i)(\$?\s*\d[\d,]*(?:\.\d+)?\s*(?:k|m|mm|million|thousand)?)\s*(?:to|-|–|and)\s*(\$?\s*\d[\d,]*(?:\.\d+)?\s*(?:k|m|mm|million|thousand)?)`)
	underPattern    = regexp.MustCompile(`(?i)\b(?:under|below|up to|max(?:imum)?(?: of)?|around|about|budget(?: of| is)?)\s*(\$?\s*\d[\d,]*(?:\.\d+)?\s*(?:k|m|mm|million|thousand)?)`)
	overPattern     = regexp.MustCompile(`(?i)\b(?:over|above|at least|starting (?:at|from)|from)\s*(\$?\s*\d[\d,]*(?:\.\d+)?\s*(?:k|m|mm|million|thousand)?)`)
)

var propertyTypeKeywords = map[string]string{
	"apartment": "apartment",
	"flat":      "apartment",
	"condo":     "apartment",
	"villa":     "villa",
	"townhouse": "townhouse",
	"town home": "townhouse",
	"penthouse": "penthouse",
	"studio":    "studio",
}

// PreferenceExtractor turns a free-text message into a partial preference
// update. Deterministic pattern matching runs first and wins over the LLM for
// the fields it finds; the LLM fills in what patterns cannot (city, country).
type PreferenceExtractor struct {
	client llm.Client
	model  string
	logger *logging.Logger
}

func NewPreferenceExtractor(client llm.Client, model string, logger *logging.Logger) *PreferenceExtractor {
	if client == nil {
		panic("agent: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PreferenceExtractor{client: client, model: model, logger: logger}
}

// Extract returns the fields the message newly specifies. It fails only when
// the LLM call fails AND pattern matching found nothing, so a dead model
// never blocks messages patterns can fully handle.
func (e *PreferenceExtractor) Extract(ctx context.Context, message string) (Preferences, error) {
	direct := extractDirect(message)

	fromLLM, err := e.extractLLM(ctx, message)
	if err != nil {
		if direct.Empty() {
			return Preferences{}, fmt.Errorf("agent: preference extraction: %w", err)
		}
		e.logger.Warn("llm extraction failed, using pattern results only", "error", err)
		return direct, nil
	}

	// Pattern-matched values override the model's reading of the same field.
	merged := fromLLM
	merged.Merge(direct)
	return merged, nil
}

func (e *PreferenceExtractor) extractLLM(ctx context.Context, message string) (Preferences, error) {
	resp, err := e.client.Complete(ctx, llm.Request{
		Model:       e.model,
		System:      []string{extractionPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: message}},
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		return Preferences{}, err
	}

	var parsed struct {
		City         string   `json:"city"`
		Country      string   `json:"country"`
		Bedrooms     *int     `json:"bedrooms"`
		BudgetMin    *float64 `json:"budget_min"`
		BudgetMax    *float64 `json:"budget_max"`
		PropertyType string   `json:"property_type"`
	}
	raw := stripJSONFences(resp.Text)
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Preferences{}, fmt.Errorf("decode extraction output: %w", err)
	}

	return Preferences{
		City:         strings.TrimSpace(parsed.City),
		Country:      strings.TrimSpace(parsed.Country),
		Bedrooms:     parsed.Bedrooms,
		BudgetMin:    parsed.BudgetMin,
		BudgetMax:    parsed.BudgetMax,
		PropertyType: strings.ToLower(strings.TrimSpace(parsed.PropertyType)),
	}, nil
}

// extractDirect pulls bedrooms, budget, property type, and budget waivers out
// of the message with patterns alone.
func extractDirect(message string) Preferences {
	var p Preferences
	lower := strings.ToLower(message)

	for _, phrase := range noBudgetPhrases {
		if strings.Contains(lower, phrase) {
			p.BudgetWaived = true
			break
		}
	}

	if m := bedroomsPattern.FindStringSubmatch(message); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= 20 {
			p.Bedrooms = &n
		}
	}

	for keyword, canonical := range propertyTypeKeywords {
		if strings.Contains(lower, keyword) {
			p.PropertyType = canonical
			if canonical == "studio" && p.Bedrooms == nil {
				zero := 0
				p.Bedrooms = &zero
			}
			break
		}
	}

	if !p.BudgetWaived {
		if m := rangePattern.FindStringSubmatch(message); m != nil {
			lo, loOK := parseMoney(m[1])
			hi, hiOK := parseMoney(m[2])
			if loOK && hiOK && hi > lo && plausibleBudget(hi) {
				p.BudgetMin = &lo
				p.BudgetMax = &hi
			}
		} else if m := underPattern.FindStringSubmatch(message); m != nil {
			if v, ok := parseMoney(m[1]); ok && plausibleBudget(v) {
				p.BudgetMax = &v
			}
		} else if m := overPattern.FindStringSubmatch(message); m != nil {
			if v, ok := parseMoney(m[1]); ok && plausibleBudget(v) {
				p.BudgetMin = &v
			}
		}
	}

	return p
}

// parseMoney converts "$800k", "1.2M", "950,000" to dollars.
func parseMoney(raw string) (float64, bool) {
	m := moneyPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	digits := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k", "thousand":
		v *= 1_000
	case "m", "mm", "million":
		v *= 1_000_000
	}
	return v, true
}

// plausibleBudget filters out bedroom counts and years that the money
// pattern would otherwise accept.
func plausibleBudget(v float64) bool {
	return v >= 10_000
}

func stripJSONFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	// Some models wrap the object in prose; keep just the braces.
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			return raw[start : end+1]
		}
	}
	return raw
}
