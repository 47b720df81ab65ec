package notifiers

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/resend/resend-go/v2"
)

// ErrSkipped is returned when a message is below the configured severity
var ErrSkipped = errors.New("message below minimum severity")

// emailSender is the part of the Resend client the notifier uses
type emailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier implements email notifications using Resend API
type EmailNotifier struct {
	config *EmailConfig
	sender emailSender
}

// NewEmailNotifier creates a new email notifier using Resend
func NewEmailNotifier(config *EmailConfig) *EmailNotifier {
	notifier := &EmailNotifier{config: config}
	if config.ResendAPIKey != "" {
		notifier.sender = resend.NewClient(config.ResendAPIKey).Emails
	}
	return notifier
}

// Name returns the notifier name
func (e *EmailNotifier) Name() string {
	return "email"
}

// IsEnabled returns whether email notifications are enabled
func (e *EmailNotifier) IsEnabled() bool {
	return e.config.Enabled && e.config.ResendAPIKey != "" && e.sender != nil
}

// Send mails msg to the default recipients. Messages below MinSeverity
// return ErrSkipped.
func (e *EmailNotifier) Send(msg *Message) error {
	if !e.IsEnabled() {
		return fmt.Errorf("email notifier is not enabled or configured (enabled: %v, has_api_key: %v)",
			e.config.Enabled, e.config.ResendAPIKey != "")
	}

	if msg.Severity.rank() < e.config.MinSeverity.rank() {
		return ErrSkipped
	}

	if len(e.config.DefaultTo) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	subject, err := e.generateSubject(msg)
	if err != nil {
		return fmt.Errorf("failed to generate subject: %w", err)
	}

	htmlBody, textBody, err := e.generateBody(msg)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    e.getFromAddress(),
		To:      e.config.DefaultTo,
		Subject: subject,
		Html:    htmlBody,
		Text:    textBody,
		Headers: map[string]string{
			"X-Alert-ID":       msg.ID,
			"X-Alert-Severity": string(msg.Severity),
			"X-Alert-Resource": msg.Resource,
		},
		Tags: []resend.Tag{
			{Name: "alert_resource", Value: msg.Resource},
			{Name: "alert_severity", Value: string(msg.Severity)},
		},
	}

	if params.From == "" {
		return fmt.Errorf("from email is required")
	}

	if _, err := e.sender.Send(params); err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}

func (e *EmailNotifier) getFromAddress() string {
	if e.config.FromName != "" && e.config.FromEmail != "" {
		return fmt.Sprintf("%s <%s>", e.config.FromName, e.config.FromEmail)
	}
	return e.config.FromEmail
}

func (e *EmailNotifier) generateSubject(msg *Message) (string, error) {
	if e.config.SubjectTemplate != "" {
		return executeTemplate(e.config.SubjectTemplate, msg)
	}

	subject := msg.Subject
	if msg.SubjectID != "" {
		subject = fmt.Sprintf("%s (%s)", subject, msg.SubjectID)
	}
	return fmt.Sprintf("[%s] %s usage on %s", strings.ToUpper(string(msg.Severity)), resourceTitle(msg.Resource), subject), nil
}

func (e *EmailNotifier) generateBody(msg *Message) (string, string, error) {
	if e.config.BodyTemplate != "" {
		body, err := executeTemplate(e.config.BodyTemplate, msg)
		return body, body, err
	}
	return generateDefaultHTMLBody(msg), generateDefaultTextBody(msg), nil
}

func generateDefaultHTMLBody(msg *Message) string {
	color := severityColor(msg.Severity)

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Hyperwatch Alert</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 600px; margin: 0 auto; background-color: white; padding: 20px; border-radius: 8px; }
        .header { border-bottom: 2px solid ` + color + `; padding-bottom: 10px; margin-bottom: 20px; }
        .severity { color: ` + color + `; font-weight: bold; font-size: 18px; }
        .details-table { width: 100%; border-collapse: collapse; }
        .details-table td { padding: 8px; border-bottom: 1px solid #dee2e6; }
        .footer { margin-top: 20px; font-size: 12px; color: #6c757d; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Hyperwatch Alert</h1>
            <p class="severity">` + strings.ToUpper(string(msg.Severity)) + `</p>
        </div>
        <p>` + html.EscapeString(msg.Text) + `</p>
        <table class="details-table">`)

	fmt.Fprintf(&b, "\n            <tr><td>Subject</td><td>%s</td></tr>", html.EscapeString(msg.Subject))
	if msg.SubjectID != "" {
		fmt.Fprintf(&b, "\n            <tr><td>ID</td><td>%s</td></tr>", html.EscapeString(msg.SubjectID))
	}
	fmt.Fprintf(&b, "\n            <tr><td>Resource</td><td>%s</td></tr>", resourceTitle(msg.Resource))
	fmt.Fprintf(&b, "\n            <tr><td>Usage</td><td>%.1f%%</td></tr>", msg.Value)
	fmt.Fprintf(&b, "\n            <tr><td>Threshold</td><td>%g%%</td></tr>", msg.Threshold)
	fmt.Fprintf(&b, "\n            <tr><td>Raised At</td><td>%s</td></tr>", msg.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString(`
        </table>
        <div class="footer">
            <p>This alert was generated by Hyperwatch.</p>
        </div>
    </div>
</body>
</html>`)

	return b.String()
}

func generateDefaultTextBody(msg *Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "HYPERWATCH ALERT - %s\n", strings.ToUpper(string(msg.Severity)))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	b.WriteString(msg.Text + "\n\n")

	b.WriteString("DETAILS:\n")
	fmt.Fprintf(&b, "- Subject: %s\n", msg.Subject)
	if msg.SubjectID != "" {
		fmt.Fprintf(&b, "- ID: %s\n", msg.SubjectID)
	}
	fmt.Fprintf(&b, "- Resource: %s\n", resourceTitle(msg.Resource))
	fmt.Fprintf(&b, "- Usage: %.1f%%\n", msg.Value)
	fmt.Fprintf(&b, "- Threshold: %g%%\n", msg.Threshold)
	fmt.Fprintf(&b, "- Raised At: %s\n", msg.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("\n" + strings.Repeat("-", 50) + "\n")
	b.WriteString("Generated by Hyperwatch\n")
	return b.String()
}

func resourceTitle(resource string) string {
	switch resource {
	case "cpu":
		return "CPU"
	case "memory":
		return "Memory"
	case "storage":
		return "Storage"
	default:
		return resource
	}
}

func severityColor(severity Severity) string {
	switch severity {
	case SeverityWarning:
		return "#ffc107"
	case SeverityCritical:
		return "#dc3545"
	default:
		return "#6c757d"
	}
}

func executeTemplate(tmplStr string, msg *Message) (string, error) {
	tmpl, err := template.New("alert").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}
