package agent

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
	namePattern  = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm|this is)\s+([A-Za-z][A-Za-z'\-]+)(?:\s+([A-Za-z][A-Za-z'\-]+))?`)
)

// Words that look like a bare name reply but never are one.
var notNames = map[string]struct{}{
	"yes": {}, "no": {}, "ok": {}, "okay": {}, "sure": {}, "thanks": {},
	"thank": {}, "hello": {}, "hi": {}, "hey": {}, "please": {},
}

// ExtractLeadData pulls contact fields out of a message with patterns alone.
// No LLM call: emails and phone numbers are mechanical, and short replies to
// a name prompt are taken verbatim.
func ExtractLeadData(message string, existing LeadData) LeadData {
	return extractLeadData(message, existing, true)
}

// extractLeadData is the real extractor. allowBareName=false keeps the
// explicit patterns but disables the bare one/two-word name heuristics, for
// messages that are known to be about something else entirely (a property
// mention like "Palm View" must never become a lead's name).
func extractLeadData(message string, existing LeadData, allowBareName bool) LeadData {
	var update LeadData

	if email := emailPattern.FindString(message); email != "" {
		update.Email = email
	}

	withoutEmail := emailPattern.ReplaceAllString(message, " ")
	if phone := phonePattern.FindString(withoutEmail); phone != "" {
		if digits := countDigits(phone); digits >= 7 && digits <= 15 {
			update.Phone = strings.TrimSpace(phone)
		}
	}

	// A bare one-word reply while only the first name is known answers the
	// surname prompt, not a fresh first name.
	if allowBareName && existing.FirstName != "" && existing.LastName == "" {
		if word, ok := bareNameReply(withoutEmail); ok {
			update.LastName = word
			return update
		}
	}

	first, last := extractName(withoutEmail, allowBareName)
	if first != "" {
		update.FirstName = first
	}
	if last != "" {
		update.LastName = last
	}
	return update
}

func extractName(message string, allowBare bool) (first, last string) {
	if m := namePattern.FindStringSubmatch(message); m != nil {
		first = title(m[1])
		if m[2] != "" {
			last = title(m[2])
		}
		return first, last
	}
	if !allowBare {
		return "", ""
	}

	// A short message of one or two plain words is treated as a direct name
	// reply ("Sarah Chen").
	words := strings.Fields(strings.TrimSpace(message))
	if len(words) == 0 || len(words) > 2 {
		return "", ""
	}
	for _, w := range words {
		if !plainWord(w) {
			return "", ""
		}
	}
	first = title(words[0])
	if len(words) == 2 {
		last = title(words[1])
	}
	return first, last
}

func bareNameReply(message string) (string, bool) {
	words := strings.Fields(strings.TrimSpace(message))
	if len(words) != 1 || !plainWord(words[0]) {
		return "", false
	}
	return title(words[0]), true
}

func plainWord(w string) bool {
	w = strings.Trim(w, ".,!")
	if w == "" {
		return false
	}
	if _, skip := notNames[strings.ToLower(w)]; skip {
		return false
	}
	for _, r := range w {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '\'' || r == '-') {
			return false
		}
	}
	return true
}

func title(w string) string {
	w = strings.Trim(w, ".,!")
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
