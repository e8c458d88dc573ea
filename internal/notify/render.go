// Package notify turns notification intents into a durable in-app record
// plus best-effort push and email deliveries.
package notify

import (
	"fmt"
	"strings"

	"access-workflow/internal/models"
)

// Rendered is the human-readable form of a payload.
type Rendered struct {
	Title string
	Body  string
}

// Render produces the title and body for payload. It does no I/O.
func Render(payload models.Payload) (Rendered, error) {
	switch p := payload.(type) {
	case models.RequestCreatedPayload:
		body := fmt.Sprintf("%s sent you an access request.", nameOr(p.RequesterName))
		if msg := strings.TrimSpace(p.Message); msg != "" {
			body += fmt.Sprintf(" %q", msg)
		}
		return Rendered{Title: "New access request", Body: body}, nil

	case models.RequestRespondedPayload:
		var verb string
		switch p.Outcome {
		case models.StatusAccepted:
			verb = "accepted"
		case models.StatusRejected:
			verb = "declined"
		default:
			return Rendered{}, fmt.Errorf("cannot render response outcome %q", p.Outcome)
		}
		body := fmt.Sprintf("%s %s your access request.", nameOr(p.TargetName), verb)
		if msg := strings.TrimSpace(p.Message); msg != "" {
			body += fmt.Sprintf(" %q", msg)
		}
		return Rendered{Title: "Access request " + verb, Body: body}, nil

	case nil:
		return Rendered{}, fmt.Errorf("payload is required")

	default:
		return Rendered{}, fmt.Errorf("no renderer for payload type %T", payload)
	}
}

func nameOr(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Someone"
	}
	return name
}
