package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/config"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

func NewReportMailer() ReportMailer {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Report mailer will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Debug("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return NewMailgunEmailService(mg, config.Cfg.SenderEmail, config.Cfg.SenderName)
	default:
		return &MockEmailService{}
	}
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func NewMailgunEmailService(mg mailgun.Mailgun, senderEmail, senderName string) *MailgunEmailService {
	return &MailgunEmailService{mg: mg, senderEmail: senderEmail, senderName: senderName}
}

func declarationSubject(decl *models.Declaration) string {
	return fmt.Sprintf("Crypto capital gains %s to %s (%s)",
		decl.Start.UTC().Format("2006-01-02"), decl.End.UTC().Format("2006-01-02"), decl.Fiat)
}

func (s *MailgunEmailService) SendDeclaration(ctx context.Context, toEmail string, decl *models.Declaration) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)

	var body strings.Builder
	if err := WriteDeclaration(&body, decl, FormatText); err != nil {
		return fmt.Errorf("failed to render declaration: %w", err)
	}
	plainTextBody := body.String()
	htmlBody := fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<pre style="font-family: monospace;">%s</pre>
		</body>
	</html>`, html.EscapeString(plainTextBody))

	message := s.mg.NewMessage(from, declarationSubject(decl), plainTextBody, toEmail)
	message.SetHtml(htmlBody)
	ctx, cancel := context.WithTimeout(ctx, time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send declaration via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Declaration sent successfully via Mailgun", "to", toEmail, "id", id, "mailgunResp", resp)
	return nil
}

// MockEmailService only logs what it would have sent.
type MockEmailService struct {
	Sent []string
}

func (m *MockEmailService) SendDeclaration(_ context.Context, toEmail string, decl *models.Declaration) error {
	logger.L.Info("MockEmailService: Would send declaration.", "to", toEmail, "subject", declarationSubject(decl),
		"disposals", len(decl.Records), "totalCapitalGain", decl.TotalCapitalGain.StringFixedBank(2))
	m.Sent = append(m.Sent, toEmail)
	return nil
}
