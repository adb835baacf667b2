package email

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// ErrUnknownTemplate is returned for jobs naming a template we don't have.
var ErrUnknownTemplate = errors.New("unknown email template")

type emailTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[string]emailTemplate{
	ports.TemplateTechnicianAssignment: {
		subject: "New Technical Ticket Assigned",
		text: texttemplate.Must(texttemplate.New("text").Option("missingkey=zero").Parse(
			`Hello {{.technicianName}},

You have been assigned a new {{.category}} ticket (#{{.ticketId}}).

Priority: {{.priority}}

Description:
{{.description}}

Please address this ticket promptly.
`)),
		html: htmltemplate.Must(htmltemplate.New("html").Option("missingkey=zero").Parse(
			`<h2>New Technical Ticket Assigned</h2>
<p>Hello {{.technicianName}},</p>
<p>You have been assigned a new {{.category}} ticket (<strong>#{{.ticketId}}</strong>).</p>
<ul><li><strong>Priority:</strong> {{.priority}}</li></ul>
<h3>Description:</h3>
<p>{{.description}}</p>
<p>Please address this ticket promptly.</p>
`)),
	},
	ports.TemplateTicketStatus: {
		subject: "Ticket Status Updated",
		text: texttemplate.Must(texttemplate.New("text").Option("missingkey=zero").Parse(
			`Hello {{.name}},

Your ticket #{{.ticketId}} is now {{.status}}.
`)),
		html: htmltemplate.Must(htmltemplate.New("html").Option("missingkey=zero").Parse(
			`<p>Hello {{.name}},</p>
<p>Your ticket <strong>#{{.ticketId}}</strong> is now <strong>{{.status}}</strong>.</p>
`)),
	},
}

// Render builds the email for a notification job. The job subject wins over
// the template default.
func Render(from string, job ports.NotificationJob) (*Message, error) {
	tmpl, ok := templates[job.Template]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, job.Template)
	}

	data := job.Context
	if data == nil {
		data = map[string]string{}
	}

	var text, html bytes.Buffer
	if err := tmpl.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("rendering %s text: %w", job.Template, err)
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("rendering %s html: %w", job.Template, err)
	}

	subject := job.Subject
	if subject == "" {
		subject = tmpl.subject
	}

	return &Message{
		From:    from,
		To:      job.To,
		ToName:  job.ToName,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
