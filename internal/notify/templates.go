package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/synera-br/splennet-backend/internal/models"
)

type message struct {
	subject *template.Template
	body    *template.Template
}

func mustMessage(name, subject, body string) message {
	return message{
		subject: template.Must(template.New(name + "-subject").Parse(subject)),
		body:    template.Must(template.New(name + "-body").Parse(body)),
	}
}

var messages = map[models.NotificationType]message{
	models.NotifyWelcome: mustMessage("welcome",
		`Welcome to Splennet, {{.Name}}`,
		`Hi {{.Name}},

Your account is ready. The free plan includes one essay draft so you can try the builder.

Head to {{.AppURL}} to get started.`),

	models.NotifyUsageLimitReached: mustMessage("usage-limit",
		`You've reached your {{.PlanTier}} plan limit`,
		`Hi {{.Name}},

You have used {{index .Data "used"}} of {{index .Data "limit"}} {{if eq (index .Data "action") "human_review"}}human reviews{{else}}essays{{end}} on your {{.PlanTier}} plan.

Upgrade at {{.AppURL}}/pricing to keep going.`),

	models.NotifyReviewCompleted: mustMessage("review-completed",
		`Your essay review is ready`,
		`Hi {{.Name}},

A reviewer has finished reading your essay and left feedback.

Read it at {{.AppURL}}/essays/{{index .Data "essayId"}}.`),

	models.NotifySubscriptionEnding: mustMessage("subscription-ending",
		`Your {{.PlanTier}} subscription ends in {{index .Data "daysLeft"}} days`,
		`Hi {{.Name}},

Your {{.PlanTier}} subscription ends on {{index .Data "endsAt"}}. After that your account moves to the free plan.

You can renew at {{.AppURL}}/subscription.`),

	models.NotifyPaymentFailed: mustMessage("payment-failed",
		`We couldn't process your payment`,
		`Hi {{.Name}},

The latest payment for your {{.PlanTier}} subscription failed. Please update your payment method at {{.AppURL}}/subscription to keep your plan.`),
}

type templateData struct {
	models.Notification
	AppURL string
}

// Render builds the subject and body of a notification email.
func Render(n models.Notification, appURL string) (string, string, error) {
	msg, ok := messages[n.Type]
	if !ok {
		return "", "", fmt.Errorf("no email template for notification type '%s'", n.Type)
	}
	data := templateData{Notification: n, AppURL: appURL}
	if data.Name == "" {
		data.Name = n.Email
	}

	var subject, body bytes.Buffer
	if err := msg.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject of '%s': %w", n.Type, err)
	}
	if err := msg.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render body of '%s': %w", n.Type, err)
	}
	return subject.String(), body.String(), nil
}
