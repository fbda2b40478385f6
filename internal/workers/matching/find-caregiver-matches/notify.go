package findcaregivermatches

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync/atomic"

	"caring-compass-workers/internal/common/aws"
	"caring-compass-workers/internal/common/metrics"

	"golang.org/x/sync/errgroup"
)

// EmailSender is satisfied by *aws.SESClient.
type EmailSender interface {
	Send(ctx context.Context, email aws.Email) (string, error)
}

// SMSSender is satisfied by *aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

const maxConcurrentEmails = 4

var coordinatorEmail = template.Must(template.New("coordinator").Parse(
	`<h2>Caregiver Matching Results</h2>
<p><strong>Visit:</strong> {{.ServiceType}} on {{.Date}}</p>
<p><strong>Client:</strong> {{.ClientName}}</p>
<p><strong>Matches found:</strong> {{.MatchCount}}</p>
{{- if .Assignee}}
<p><strong>Auto-assigned to:</strong> {{.Assignee}}</p>
{{- end}}
<p>View details in the admin portal.</p>
`))

type emailView struct {
	ServiceType string
	Date        string
	ClientName  string
	MatchCount  int
	Assignee    string
}

func coordinatorSubject(visitID string, autoAssigned bool) string {
	if autoAssigned {
		return fmt.Sprintf("Caregiver matching completed for Visit %s", visitID)
	}
	return fmt.Sprintf("Caregiver matching results for Visit %s", visitID)
}

func (h *Handler) buildCoordinatorEmail(visit *Visit, matchCount int, assignee string) (aws.Email, error) {
	view := emailView{
		ServiceType: visit.ServiceType,
		Date:        visit.ScheduledStart.In(h.config.location()).Format("Jan 2, 2006"),
		ClientName:  visit.ClientFirstName + " " + visit.ClientLastName,
		MatchCount:  matchCount,
		Assignee:    assignee,
	}

	var buf bytes.Buffer
	if err := coordinatorEmail.Execute(&buf, view); err != nil {
		return aws.Email{}, fmt.Errorf("render coordinator email: %w", err)
	}

	text := fmt.Sprintf("Visit: %s on %s\nClient: %s\nMatches found: %d\n",
		view.ServiceType, view.Date, view.ClientName, view.MatchCount)
	if assignee != "" {
		text += fmt.Sprintf("Auto-assigned to: %s\n", assignee)
	}

	return aws.Email{
		Subject: coordinatorSubject(visit.ID, assignee != ""),
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

// notifyCoordinators emails every active coordinator and returns how many
// deliveries succeeded. Failures are logged and never returned.
func (h *Handler) notifyCoordinators(ctx context.Context, visit *Visit, matchCount int, assignee string) int {
	if h.email == nil {
		return 0
	}

	coordinators, err := h.visits.listCoordinators(ctx)
	if err != nil {
		h.logger.Warn("could not load coordinators", map[string]interface{}{
			"visitId": visit.ID,
			"error":   err,
		})
		return 0
	}

	email, err := h.buildCoordinatorEmail(visit, matchCount, assignee)
	if err != nil {
		h.logger.Error("coordinator email not sent", map[string]interface{}{"error": err})
		return 0
	}

	var sent atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEmails)
	for _, c := range coordinators {
		if c.Email == "" {
			continue
		}
		c := c
		g.Go(func() error {
			msg := email
			msg.To = []string{c.Email}
			if _, err := h.email.Send(gctx, msg); err != nil {
				metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
				h.logger.Warn("coordinator email failed", map[string]interface{}{
					"coordinatorId": c.ID,
					"visitId":       visit.ID,
					"error":         err,
				})
				return nil
			}
			metrics.NotificationsSent.WithLabelValues("email", "sent").Inc()
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(sent.Load())
}

// notifyAssignee texts the auto-assigned caregiver. Delivery problems are logged.
func (h *Handler) notifyAssignee(ctx context.Context, visit *Visit, caregiverID string) {
	if h.sms == nil {
		return
	}

	phone, err := h.visits.caregiverPhone(ctx, caregiverID)
	if err != nil || phone == "" {
		h.logger.Warn("assigned caregiver has no reachable phone", map[string]interface{}{
			"caregiverId": caregiverID,
			"error":       err,
		})
		return
	}

	message := fmt.Sprintf("Caring Compass: you have been assigned a %s visit on %s. Check the caregiver app for details.",
		visit.ServiceType, visit.ScheduledStart.In(h.config.location()).Format("Mon Jan 2 at 3:04 PM"))
	if _, err := h.sms.SendSMS(ctx, phone, message); err != nil {
		metrics.NotificationsSent.WithLabelValues("sms", "failed").Inc()
		h.logger.Warn("assignment sms failed", map[string]interface{}{
			"caregiverId": caregiverID,
			"error":       err,
		})
		return
	}
	metrics.NotificationsSent.WithLabelValues("sms", "sent").Inc()
}
