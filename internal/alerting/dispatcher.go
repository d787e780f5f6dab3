package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleet-alerts/internal/models"

	"go.uber.org/zap"
)

// DispatchMode says how the alerts fired during a pass are announced.
type DispatchMode int

const (
	// DispatchPerAlert sends one message per fired alert.
	DispatchPerAlert DispatchMode = iota
	// DispatchDigest groups the fired alerts of a pass into a single message.
	DispatchDigest
)

// Notification outcomes reported to the Recorder.
const (
	OutcomeSent                = "sent"
	OutcomeFailed              = "failed"
	OutcomeTimeout             = "timeout"
	OutcomeSkippedNoRecipients = "skipped_no_recipients"
	OutcomeSkippedUnconfigured = "skipped_unconfigured"
)

const defaultSendTimeout = 30 * time.Second

func DispatchModeFor(t models.AlertType) (DispatchMode, error) {
	switch t {
	case models.AlertTypeDocument:
		return DispatchPerAlert, nil
	case models.AlertTypeStock, models.AlertTypeMaintenance:
		return DispatchDigest, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlertType, t)
}

// RecipientRoles lists the roles notified for an alert type.
func RecipientRoles(t models.AlertType) ([]models.Role, error) {
	switch t {
	case models.AlertTypeDocument:
		return []models.Role{models.RoleDirection, models.RoleCoordinateur}, nil
	case models.AlertTypeStock:
		return []models.Role{models.RoleAdmin, models.RoleResponsableLogistique, models.RoleMagasinier}, nil
	case models.AlertTypeMaintenance:
		return []models.Role{models.RoleAdmin, models.RoleResponsableLogistique, models.RoleMaintenancier}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlertType, t)
}

// DigestSnapshot picks the findings listed under the fired alerts of a digest:
// every out-of-stock part, or every maintenance overdue or due by tomorrow.
func DigestSnapshot(t models.AlertType, findings []Finding) []Finding {
	var snapshot []Finding
	for _, f := range findings {
		switch t {
		case models.AlertTypeStock:
			if f.Urgency <= 0 {
				snapshot = append(snapshot, f)
			}
		case models.AlertTypeMaintenance:
			if dueSoon(f) {
				snapshot = append(snapshot, f)
			}
		}
	}
	return snapshot
}

func typeLabel(t models.AlertType) string {
	switch t {
	case models.AlertTypeDocument:
		return "Documents"
	case models.AlertTypeStock:
		return "Stock"
	case models.AlertTypeMaintenance:
		return "Maintenance"
	}
	return string(t)
}

// Dispatcher turns fired alerts into mail. It never returns errors: every
// failure is logged and the pass carries on.
type Dispatcher struct {
	users       UserDirectory
	mailer      Mailer
	sendTimeout time.Duration
	logger      *zap.Logger
	recorder    Recorder
}

func NewDispatcher(users UserDirectory, mailer Mailer, sendTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		users:       users,
		mailer:      mailer,
		sendTimeout: sendTimeout,
		logger:      logger.With(zap.String("component", "alert-dispatcher")),
		recorder:    nopRecorder{},
	}
}

func (d *Dispatcher) SetRecorder(r Recorder) {
	if r != nil {
		d.recorder = r
	}
}

func (d *Dispatcher) NotifyAlert(ctx context.Context, alert *models.Alert) {
	subject := fmt.Sprintf("[CRITIQUE] %s", alert.Title)

	lines := []string{
		alert.Title,
		alert.Message,
		"",
		"Type: " + typeLabel(alert.AlertType),
		"Détectée le: " + alert.CreatedAt.Format("02/01/2006 15:04"),
	}
	d.send(ctx, alert.AlertType, subject, strings.Join(lines, "\n"))
}

func (d *Dispatcher) NotifyDigest(ctx context.Context, t models.AlertType, fired []*models.Alert, snapshot []Finding) {
	if len(fired) == 0 {
		return
	}

	subject := fmt.Sprintf("[CRITIQUE] %s: %d nouvelle(s) alerte(s) critique(s)", typeLabel(t), len(fired))

	lines := []string{"Nouvelles alertes critiques:"}
	for _, a := range fired {
		lines = append(lines, fmt.Sprintf("- %s: %s", a.Title, a.Message))
	}

	if len(snapshot) > 0 {
		lines = append(lines, "")
		switch t {
		case models.AlertTypeStock:
			lines = append(lines, "Pièces actuellement en rupture de stock:")
		case models.AlertTypeMaintenance:
			lines = append(lines, "Maintenances en retard ou prévues d'ici demain:")
		default:
			lines = append(lines, "Situation actuelle:")
		}
		for _, f := range snapshot {
			lines = append(lines, "- "+f.Message)
		}
	}

	d.send(ctx, t, subject, strings.Join(lines, "\n"))
}

func (d *Dispatcher) send(ctx context.Context, t models.AlertType, subject, body string) {
	log := d.logger.With(zap.String("alert_type", string(t)), zap.String("subject", subject))

	if d.mailer == nil || !d.mailer.IsConfigured() {
		d.recorder.Notification(t, OutcomeSkippedUnconfigured)
		log.Warn("mail transport not configured, notification skipped")
		return
	}

	recipients, err := d.recipients(ctx, t)
	if err != nil {
		d.recorder.Notification(t, OutcomeFailed)
		log.Error("failed to resolve recipients", zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		d.recorder.Notification(t, OutcomeSkippedNoRecipients)
		log.Warn("no recipients for alert type, notification skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.sendTimeout)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("mail transport panicked", zap.Any("panic", r))
				done <- false
			}
		}()
		done <- d.mailer.Send(ctx, recipients, subject, body)
	}()

	select {
	case ok := <-done:
		if !ok {
			d.recorder.Notification(t, OutcomeFailed)
			log.Error("notification not delivered", zap.Int("recipients", len(recipients)))
			return
		}
		d.recorder.Notification(t, OutcomeSent)
		log.Info("notification sent", zap.Int("recipients", len(recipients)))
	case <-ctx.Done():
		d.recorder.Notification(t, OutcomeTimeout)
		log.Error("notification timed out", zap.Duration("timeout", d.sendTimeout))
	}
}

// recipients returns the deduplicated emails of active users holding a role
// notified for t.
func (d *Dispatcher) recipients(ctx context.Context, t models.AlertType) ([]string, error) {
	roles, err := RecipientRoles(t)
	if err != nil {
		return nil, err
	}
	if d.users == nil {
		return nil, nil
	}

	users, err := d.users.FindActiveByRoles(ctx, roles)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(users))
	var emails []string
	for _, u := range users {
		if !u.Active {
			continue
		}
		email := strings.TrimSpace(u.Email)
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		if seen[key] {
			continue
		}
		seen[key] = true
		emails = append(emails, email)
	}
	return emails, nil
}
