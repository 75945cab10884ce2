package notify

import "fmt"

// BookingConfirmationSubject is the subject line for viewing confirmations.
const BookingConfirmationSubject = "Your property viewing request is confirmed"

// BookingConfirmationBody renders the plain-text confirmation sent after a
// viewing is booked.
func BookingConfirmationBody(firstName, projectName string) string {
	return fmt.Sprintf(
		"Hi %s,\n\n"+
			"Thank you for your interest in %s. Your viewing request has been "+
			"received and one of our property consultants will contact you "+
			"shortly to arrange a time.\n\n"+
			"Warm regards,\nSilver Land Properties",
		firstName, projectName,
	)
}
