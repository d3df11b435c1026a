package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"

	"github.com/medsched/agenda-api/internal/config"
	"github.com/medsched/agenda-api/internal/model"
	"github.com/medsched/agenda-api/internal/repository"
)

// Notifier delivers appointment lifecycle notifications.
type Notifier interface {
	NotifyAppointmentEvent(ctx context.Context, eventType string, payload *model.AppointmentEventPayload) error
}

type emailNotifier struct {
	dialer   *gomail.Dialer
	from     string
	userRepo repository.UserRepository
	logger   *zerolog.Logger
}

// NewEmailNotifier sends plain-text mails to the physician owning the
// appointment. When SMTP is disabled in config, a no-op notifier is
// returned so the worker wiring stays the same in every environment.
func NewEmailNotifier(cfg config.SMTPConfig, userRepo repository.UserRepository, logger *zerolog.Logger) Notifier {
	if !cfg.Enabled {
		return &noopNotifier{logger: logger}
	}
	return &emailNotifier{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:     cfg.From,
		userRepo: userRepo,
		logger:   logger,
	}
}

func (n *emailNotifier) NotifyAppointmentEvent(ctx context.Context, eventType string, payload *model.AppointmentEventPayload) error {
	physician, err := n.userRepo.Get(ctx, payload.PhysicianID)
	if err != nil {
		return fmt.Errorf("failed to resolve physician for notification: %w", err)
	}
	if physician.Email == "" {
		return nil
	}

	subject, body := renderAppointmentMail(eventType, payload)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", physician.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification mail: %w", err)
	}
	return nil
}

func renderAppointmentMail(eventType string, payload *model.AppointmentEventPayload) (string, string) {
	when := payload.ScheduledAt.UTC().Format("02/01/2006 15:04")
	switch eventType {
	case model.EventAppointmentCreated:
		return "New appointment booked",
			fmt.Sprintf("A new appointment was booked for %s.", when)
	case model.EventAppointmentCancelled:
		return "Appointment cancelled",
			fmt.Sprintf("The appointment on %s was cancelled.", when)
	default:
		return "Appointment updated",
			fmt.Sprintf("The appointment on %s was updated (status: %s).", when, payload.Status)
	}
}

type noopNotifier struct {
	logger *zerolog.Logger
}

func (n *noopNotifier) NotifyAppointmentEvent(_ context.Context, eventType string, payload *model.AppointmentEventPayload) error {
	n.logger.Debug().
		Str("event_type", eventType).
		Str("appointment_id", payload.AppointmentID.String()).
		Msg("smtp disabled, skipping notification")
	return nil
}
