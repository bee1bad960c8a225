package notify

import (
	"strings"

	"trade-match-engine/internal/models"
)

type Template struct {
	Subject string
	Body    string
}

var fallbackTemplate = Template{
	Subject: "Your application was updated",
	Body:    "Hi {{name}}, your application {{applicationId}} is now {{status}}.",
}

// DefaultTemplates covers every employer-settable status.
func DefaultTemplates() map[models.ApplicationStatus]Template {
	return map[models.ApplicationStatus]Template{
		models.ApplicationReviewing: {
			Subject: "Your application is being reviewed",
			Body:    "Hi {{name}}, the employer is reviewing your application for job {{jobId}}.",
		},
		models.ApplicationInterview: {
			Subject: "Interview request",
			Body:    "Hi {{name}}, the employer would like to interview you for job {{jobId}}.",
		},
		models.ApplicationOffer: {
			Subject: "You have an offer",
			Body:    "Hi {{name}}, you received an offer for job {{jobId}}. Log in to respond.",
		},
		models.ApplicationHired: {
			Subject: "Congratulations, you're hired",
			Body:    "Hi {{name}}, you were hired for job {{jobId}}.",
		},
		models.ApplicationRejected: {
			Subject: "Update on your application",
			Body:    "Hi {{name}}, the employer did not move forward with your application for job {{jobId}}. {{rejectionReason}}",
		},
	}
}

func templateData(note models.StatusNotification, contact *models.Contact) map[string]string {
	name := contact.Name
	if name == "" {
		name = "there"
	}
	data := map[string]string{
		"name":          name,
		"applicationId": note.ApplicationID,
		"candidateId":   note.CandidateID,
		"jobId":         note.JobID,
		"status":        string(note.Status),
	}
	if note.RejectionReason != "" {
		data["rejectionReason"] = "Reason: " + note.RejectionReason
	}
	return data
}

// renderTemplate substitutes {{key}} placeholders and strips any left over.
func renderTemplate(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return strings.TrimSpace(result)
}
