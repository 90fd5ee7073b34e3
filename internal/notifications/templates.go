package notifications

import (
	"fmt"
	"html"

	"github.com/google/uuid"
)

func confirmationEmail(reportID uuid.UUID, status string) (subject, body string) {
	subject = fmt.Sprintf("Report Received: %s", reportID)
	body = fmt.Sprintf(`<h1>Report Update</h1>
<p>Your report (%s) has been received.</p>
<p><strong>Status:</strong> %s</p>
<p>Thank you for helping keep your neighbourhood clean and safe.</p>`,
		reportID, html.EscapeString(status))
	return subject, body
}

func confirmationSMS(reportID uuid.UUID, status string) string {
	return fmt.Sprintf("Report %s received. Status: %s. Thank you!", reportID, status)
}
