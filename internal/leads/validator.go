package leads

import "strings"

// Required contact fields, in the order missing ones are reported back to
// the user.
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
)

// Validate reports whether the lead has every required contact field and a
// plausible email. The returned slice lists missing or invalid field names in
// a stable order so prompts asking the user to fill gaps read consistently.
func Validate(l Lead) (bool, []string) {
	var missing []string
	if strings.TrimSpace(l.FirstName) == "" {
		missing = append(missing, FieldFirstName)
	}
	if strings.TrimSpace(l.LastName) == "" {
		missing = append(missing, FieldLastName)
	}
	if !ValidEmail(l.Email) {
		missing = append(missing, FieldEmail)
	}
	return len(missing) == 0, missing
}

// ValidEmail checks the minimum shape the CRM will accept: a local part, an
// "@", and a domain containing a dot. Full RFC validation is deliberately
// out of scope.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.Contains(domain, "@") {
		return false
	}
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
