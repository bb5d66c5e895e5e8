// Package notification sends email to users: verification links and the
// expiry/report notifications produced by the sweep job.
package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"
)

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// Report summarizes a user's subscription list for weekly/monthly emails.
type Report struct {
	Subscriptions    int
	TotalMonthlyCost float64
	TotalYearlyCost  float64
}

// Sender is the mail surface the notification job depends on. Satisfied by
// EmailService; tests substitute a recording fake.
type Sender interface {
	SendExpiringSoon(to, subscription string, daysLeft int) error
	SendCritical(to, subscription string, hoursLeft int) error
	SendWeeklyReport(to string, report Report) error
	SendMonthlyReport(to string, report Report) error
}

// EmailService sends email over SMTP with HTML bodies.
type EmailService struct {
	config EmailConfig
}

// NewEmailService creates a new email service.
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

var verificationTmpl = template.Must(template.New("verification").Parse(`<html><body>
	<h2>Verify Your Email Address</h2>
	<p>Thanks for signing up! Please verify your email address to activate your account.</p>
	<p><a href="{{.VerifyURL}}">Click here to verify your email</a></p>
	<p>Or copy this link to your browser: {{.VerifyURL}}</p>
	<p>This link will expire in {{.TTL}}.</p>
	<p>If you didn't create an account, you can safely ignore this email.</p>
</body></html>`))

var expiringSoonTmpl = template.Must(template.New("expiringSoon").Parse(`<html><body>
	<h2>Subscription Expiring Soon</h2>
	<p>Your subscription <strong>{{.Name}}</strong> expires in {{.DaysLeft}} day(s).</p>
	<p>Renew it now to avoid losing access.</p>
</body></html>`))

var criticalTmpl = template.Must(template.New("critical").Parse(`<html><body>
	<h2>Subscription Expires Today</h2>
	<p>Your subscription <strong>{{.Name}}</strong> expires within {{.HoursLeft}} hour(s).</p>
	<p>This is your last reminder.</p>
</body></html>`))

var reportTmpl = template.Must(template.New("report").Parse(`<html><body>
	<h2>Your {{.Period}} Subscription Report</h2>
	<p>You are tracking <strong>{{.Subscriptions}}</strong> subscription(s).</p>
	<ul>
		<li>Monthly spend: {{printf "%.2f" .TotalMonthlyCost}}</li>
		<li>Yearly spend: {{printf "%.2f" .TotalYearlyCost}}</li>
	</ul>
</body></html>`))

// HumanDuration renders a duration the way it reads in an email, e.g.
// "15 minutes" or "2 hours".
func HumanDuration(d time.Duration) string {
	if d >= time.Hour {
		hours := int(d.Round(time.Hour) / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// SendVerification sends the verification link for a new signup.
func (s *EmailService) SendVerification(to, verifyURL, ttl string) error {
	body, err := render(verificationTmpl, struct {
		VerifyURL string
		TTL       string
	}{verifyURL, ttl})
	if err != nil {
		return err
	}
	return s.send(to, "Verify Your Email Address", body)
}

// SendExpiringSoon notifies that a subscription is a few days from expiry.
func (s *EmailService) SendExpiringSoon(to, subscription string, daysLeft int) error {
	body, err := render(expiringSoonTmpl, struct {
		Name     string
		DaysLeft int
	}{subscription, daysLeft})
	if err != nil {
		return err
	}
	return s.send(to, fmt.Sprintf("%s expires in %d day(s)", subscription, daysLeft), body)
}

// SendCritical notifies that a subscription expires within a day or has
// already expired.
func (s *EmailService) SendCritical(to, subscription string, hoursLeft int) error {
	body, err := render(criticalTmpl, struct {
		Name      string
		HoursLeft int
	}{subscription, hoursLeft})
	if err != nil {
		return err
	}
	return s.send(to, fmt.Sprintf("Action required: %s is expiring", subscription), body)
}

// SendWeeklyReport sends the Monday summary of the full subscription list.
func (s *EmailService) SendWeeklyReport(to string, report Report) error {
	return s.sendReport(to, "Weekly", report)
}

// SendMonthlyReport sends the first-of-month summary.
func (s *EmailService) SendMonthlyReport(to string, report Report) error {
	return s.sendReport(to, "Monthly", report)
}

func (s *EmailService) sendReport(to, period string, report Report) error {
	body, err := render(reportTmpl, struct {
		Period string
		Report
	}{period, report})
	if err != nil {
		return err
	}
	return s.send(to, fmt.Sprintf("Your %s subscription report", period), body)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

func (s *EmailService) send(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
