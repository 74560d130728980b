package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// Subjects of the transactional mails.
const (
	SubjectPasswordReset   = "Reset Your Texplicit2 Password"
	SubjectNewAccount      = "Welcome to Texplicit2"
	SubjectDemoRequest     = "We received your Texplicit2 demo request"
	SubjectReportShare     = "Texplicit2 reports shared with you"
	SubjectDocumentShare   = "Texplicit2 documents shared with you"
	SubjectSubscriptionEnd = "Your Texplicit2 subscription has ended"
)

const layout = `<html><body style="font-family: Arial, sans-serif; color: #222;">{{template "body" .}}
<p>If you have any questions, write to <a href="mailto:support@texplicit2.com">support@texplicit2.com</a>.</p>
<p>Warm regards,<br>{{.Sender}}</p></body></html>`

var bodies = map[string]string{
	"reset": `<p>Dear {{.Name}},</p>
<p>We received a request to reset the password of your Texplicit2 account.
Use the link below to choose a new password. The link is valid for 24 hours.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for a reset you can ignore this mail.</p>`,
	"new_account": `<p>Dear {{.Name}},</p>
<p>An account has been created for you on Texplicit2. Set your password with the link below to sign in.
The link is valid for 24 hours.</p>
<p><a href="{{.Link}}">Set password</a></p>`,
	"demo": `<p>Dear {{.Name}},</p>
<p>Thank you for your interest in Texplicit2. Our team will contact you shortly to schedule your demo.</p>`,
	"report_share": `<p>Hello,</p>
<p>{{.Name}} shared {{len .Items}} report(s) with you. They are attached to this mail.</p>
<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>`,
	"document_share": `<p>Hello,</p>
<p>{{.Name}} shared the following documents with you. They are attached to this mail.</p>
<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>`,
	"subscription_end": `<p>Dear {{.Name}},</p>
<p>Your Texplicit2 subscription ended on {{.Date}}. Visit the pricing page to renew your plan.</p>`,
}

var templates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(bodies))
	for name, body := range bodies {
		t := template.Must(template.New(name).Parse(layout))
		out[name] = template.Must(t.New("body").Parse(body))
	}
	return out
}()

// TemplateData fills a mail body. Unused fields are ignored by the template.
type TemplateData struct {
	Name   string
	Link   string
	Date   string
	Items  []string
	Sender string
}

func render(name string, data TemplateData) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown mail template %q", name)
	}
	if data.Sender == "" {
		data.Sender = "Texplicit2 Team"
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", name, err)
	}
	return buf.String(), nil
}

// PasswordReset builds the reset mail for a user.
func PasswordReset(to Recipient, link string) (Message, error) {
	html, err := render("reset", TemplateData{Name: to.Name, Link: link})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: SubjectPasswordReset, HTML: html, To: []Recipient{to}}, nil
}

// NewAccount invites a user created by an admin or a parent account to set a password.
func NewAccount(to Recipient, link string) (Message, error) {
	html, err := render("new_account", TemplateData{Name: to.Name, Link: link})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: SubjectNewAccount, HTML: html, To: []Recipient{to}}, nil
}

// DemoConfirmation acknowledges a demo request.
func DemoConfirmation(to Recipient) (Message, error) {
	html, err := render("demo", TemplateData{Name: to.Name})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: SubjectDemoRequest, HTML: html, To: []Recipient{to}}, nil
}

// ReportShare sends reports as attachments.
func ReportShare(sharedBy string, to []Recipient, attachments []Attachment) (Message, error) {
	return share("report_share", SubjectReportShare, sharedBy, to, attachments)
}

// DocumentShare sends documents as attachments.
func DocumentShare(sharedBy string, to []Recipient, attachments []Attachment) (Message, error) {
	return share("document_share", SubjectDocumentShare, sharedBy, to, attachments)
}

func share(tmpl, subject, sharedBy string, to []Recipient, attachments []Attachment) (Message, error) {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	html, err := render(tmpl, TemplateData{Name: sharedBy, Items: names})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html, To: to, Attachments: attachments}, nil
}

// SubscriptionEnded tells a user their plan has lapsed.
func SubscriptionEnded(to Recipient, endDate string) (Message, error) {
	html, err := render("subscription_end", TemplateData{Name: to.Name, Date: endDate})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: SubjectSubscriptionEnd, HTML: html, To: []Recipient{to}}, nil
}
