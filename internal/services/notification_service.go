// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/njcabinets/sales-backend/internal/config"
	"github.com/njcabinets/sales-backend/internal/models"
)

// NotificationService sends transactional emails for proposal lifecycle
// events. All sends are best-effort: a mail failure never rolls back the
// business transaction that triggered it.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

const proposalSentTemplate = `
<p>Hi {{.CustomerName}},</p>
<p>Your proposal from {{.CompanyName}} is ready for review.</p>
<p>Total: <strong>{{.GrandTotal}}</strong></p>
<p><a href="{{.ProposalURL}}">View your proposal</a></p>
`

const proposalAcceptedTemplate = `
<p>Proposal {{.ProposalID}} was accepted{{if .AcceptedBy}} by {{.AcceptedBy}}{{end}}.</p>
<p>Locked total: <strong>{{.GrandTotal}}</strong></p>
{{if .OrderNumber}}<p>Order {{.OrderNumber}} has been created.</p>{{end}}
`

// NotifyProposalSent emails the customer a review link.
func (s *NotificationService) NotifyProposalSent(proposal *models.Proposal) error {
	if proposal.Customer == nil || proposal.Customer.Email == "" {
		return nil
	}

	data := map[string]interface{}{
		"CustomerName": proposal.Customer.Name,
		"CompanyName":  s.config.Email.FromName,
		"GrandTotal":   formatCents(proposal.GrandTotalCents),
		"ProposalURL":  fmt.Sprintf("%s/proposals/%s", s.config.Frontend.BaseURL, proposal.ID),
	}

	body, err := s.renderTemplate(proposalSentTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(proposal.Customer.Email, "Your proposal is ready", body)
}

// NotifyProposalAccepted emails the proposal's creator that acceptance
// happened and, if conversion already ran, which order resulted.
func (s *NotificationService) NotifyProposalAccepted(proposal *models.Proposal, order *models.Order) error {
	if proposal.CreatedByUserID == nil {
		return nil
	}

	var creator models.User
	if err := s.db.First(&creator, "id = ?", *proposal.CreatedByUserID).Error; err != nil {
		return fmt.Errorf("failed to load proposal creator: %w", err)
	}

	grandTotal := proposal.GrandTotalCents
	if proposal.OrderSnapshot != nil {
		grandTotal = proposal.OrderSnapshot.Tree.GrandTotalCents
	}

	data := map[string]interface{}{
		"ProposalID": proposal.ID,
		"AcceptedBy": proposal.AcceptedByLabel,
		"GrandTotal": formatCents(grandTotal),
	}
	if order != nil {
		data["OrderNumber"] = order.OrderNumber
	}

	body, err := s.renderTemplate(proposalAcceptedTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(creator.Email, "Proposal accepted", body)
}

// NotifyProposalAcceptedAsync fires the acceptance email without blocking
// the caller. Errors are logged and dropped.
func (s *NotificationService) NotifyProposalAcceptedAsync(proposal *models.Proposal, order *models.Order) {
	go func() {
		if err := s.NotifyProposalAccepted(proposal, order); err != nil {
			logrus.WithError(err).WithField("proposal_id", proposal.ID).Warn("Failed to send acceptance email")
		}
	}()
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" || s.config.Email.SMTPUsername == "" {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("SMTP not configured; skipping email")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
