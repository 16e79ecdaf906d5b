package notify

import "text/template"

const templateSource = `
{{define "assignment_subject"}}[{{.TicketPriority}}] Ticket assigned: {{.TicketTitle}}{{end}}
{{define "assignment_body"}}<p>Hello {{.RecipientName}},</p>
<p>Ticket <b>{{.TicketTitle}}</b> ({{.TicketID}}) has been assigned to you{{if .AssignerName}} by {{.AssignerName}}{{end}}.</p>
<p>Priority: {{.TicketPriority}}<br>SLA due: {{.SLADueDate.Format "2006-01-02 15:04 MST"}}{{if .CreatorName}}<br>Reported by: {{.CreatorName}}{{end}}</p>
{{if .AIResponse}}<p>Suggested reply:</p><blockquote>{{.AIResponse}}</blockquote>{{end}}{{end}}

{{define "escalation_subject"}}Ticket escalated: {{.TicketTitle}}{{end}}
{{define "escalation_body"}}<p>Hello {{.RecipientName}},</p>
<p>{{.EscalatorName}} escalated ticket <b>{{.TicketTitle}}</b> ({{.TicketID}}) to you.</p>
{{if .EscalationReason}}<p>Reason: {{.EscalationReason}}</p>{{end}}
<p>Priority: {{.TicketPriority}}<br>SLA due: {{.SLADueDate.Format "2006-01-02 15:04 MST"}}</p>{{end}}

{{define "sla-warning_subject"}}SLA warning: {{.TicketTitle}}{{end}}
{{define "sla-warning_body"}}<p>Hello {{.RecipientName}},</p>
<p>Ticket <b>{{.TicketTitle}}</b> ({{.TicketID}}) is close to its SLA deadline of {{.SLADueDate.Format "2006-01-02 15:04 MST"}}.</p>
<p>Status: {{.TicketStatus}}<br>Assignee: {{if .AssigneeName}}{{.AssigneeName}}{{else}}unassigned{{end}}</p>{{end}}

{{define "resolution_subject"}}Ticket resolved: {{.TicketTitle}}{{end}}
{{define "resolution_body"}}<p>Hello {{.RecipientName}},</p>
<p>Your ticket <b>{{.TicketTitle}}</b> ({{.TicketID}}) has been resolved{{if .AssigneeName}} by {{.AssigneeName}}{{end}}.</p>{{end}}
`

var mailTemplates = template.Must(template.New("mail").Parse(templateSource))
