package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// message is a rendered email.
type message struct {
	Subject  string
	TextBody string
	HTMLBody string
}

type templateData struct {
	Name string
	Link string
	TTL  string
}

var htmlTemplates = template.Must(template.New("mail").Parse(`
{{define "verification"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2>Welcome{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Thank you for signing up. Please verify your email address:</p>
<p><a href="{{.Link}}">Verify Email</a></p>
<p>Or copy and paste this link in your browser:</p>
<p style="color: #666; word-break: break-all;">{{.Link}}</p>
<p style="color: #999; font-size: 12px;">This link will expire in {{.TTL}}.</p>
</div>{{end}}
{{define "reset"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2>Hello{{if .Name}}, {{.Name}}{{end}},</h2>
<p>We received a request to reset your password. Use the link below to set a new one:</p>
<p><a href="{{.Link}}">Reset Password</a></p>
<p style="color: #666; word-break: break-all;">{{.Link}}</p>
<p style="color: #999; font-size: 12px;">This link will expire in {{.TTL}}.</p>
<p style="color: #999; font-size: 12px;">If you didn't request this, please ignore this email.</p>
</div>{{end}}
{{define "welcome"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2>Welcome{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Your email has been verified successfully.</p>
<p>If you have any questions, feel free to reach out to our support team.</p>
</div>{{end}}
`))

func render(name string, d templateData) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, name, d); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func verificationMessage(name, link string) (message, error) {
	html, err := render("verification", templateData{Name: name, Link: link, TTL: "24 hours"})
	if err != nil {
		return message{}, err
	}
	return message{
		Subject:  "Email Verification",
		TextBody: fmt.Sprintf("Please verify your email address by opening the link below:\n\n%s\n\nThis link will expire in 24 hours.", link),
		HTMLBody: html,
	}, nil
}

func resetMessage(name, link string) (message, error) {
	html, err := render("reset", templateData{Name: name, Link: link, TTL: "1 hour"})
	if err != nil {
		return message{}, err
	}
	return message{
		Subject:  "Password Reset Request",
		TextBody: fmt.Sprintf("Open the link below to set a new password:\n\n%s\n\nThis link will expire in 1 hour. If you didn't request this, please ignore this email.", link),
		HTMLBody: html,
	}, nil
}

func welcomeMessage(name string) (message, error) {
	html, err := render("welcome", templateData{Name: name})
	if err != nil {
		return message{}, err
	}
	return message{
		Subject:  "Welcome!",
		TextBody: "Your email has been verified successfully.",
		HTMLBody: html,
	}, nil
}
