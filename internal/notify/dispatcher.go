// Package notify delivers candidate status notifications over SES email,
// SNS SMS and an SNS topic.
package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	awsclients "trade-match-engine/internal/common/aws"
	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/models"
)

// ContactSource resolves where a candidate can be reached.
type ContactSource interface {
	GetContact(ctx context.Context, candidateID string) (*models.Contact, error)
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	SMSStatuses  []models.ApplicationStatus
	TopicEnabled bool
	TopicARN     string
}

// ConfigFrom maps the notifications config section.
func ConfigFrom(c config.NotificationConfig) Config {
	out := Config{
		EmailEnabled: c.Email.Enabled,
		FromEmail:    c.Email.FromEmail,
		SMSEnabled:   c.SMS.Enabled,
		TopicEnabled: c.Topic.Enabled,
		TopicARN:     c.Topic.ARN,
	}
	for _, s := range c.SMS.Statuses {
		out.SMSStatuses = append(out.SMSStatuses, models.ApplicationStatus(strings.ToLower(strings.TrimSpace(s))))
	}
	return out
}

func (c Config) smsFor(status models.ApplicationStatus) bool {
	for _, s := range c.SMSStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type AWSDispatcher struct {
	config    Config
	contacts  ContactSource
	ses       awsclients.SESService
	sns       awsclients.SNSService
	templates map[models.ApplicationStatus]Template
	logger    logger.Logger
	now       func() time.Time
}

func NewAWSDispatcher(cfg Config, contacts ContactSource, clients *awsclients.Clients, log logger.Logger) *AWSDispatcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	d := &AWSDispatcher{
		config:    cfg,
		contacts:  contacts,
		templates: DefaultTemplates(),
		logger:    log.WithFields(map[string]interface{}{"component": "aws-dispatcher"}),
		now:       time.Now,
	}
	if clients != nil {
		d.ses, d.sns = clients.SES, clients.SNS
	}
	return d
}

// Notify satisfies application.Dispatcher. A report with status failed is
// returned as NOTIFICATION_SEND_FAILED.
func (d *AWSDispatcher) Notify(ctx context.Context, note models.StatusNotification) error {
	report, err := d.Deliver(ctx, note)
	if err != nil {
		return err
	}
	if report.Status == models.DeliveryFailed {
		failed := []string{}
		for ch, ok := range report.Channels {
			if !ok {
				failed = append(failed, ch)
			}
		}
		return errors.NewNotificationFailedError(strings.Join(failed, ","), fmt.Errorf("notification %s not delivered", note.ID))
	}
	return nil
}

// Deliver sends note on every enabled channel and reports per-channel
// outcomes. Only a failed contact lookup is returned as an error; an unknown
// candidate yields a disabled report.
func (d *AWSDispatcher) Deliver(ctx context.Context, note models.StatusNotification) (*models.DeliveryReport, error) {
	report := &models.DeliveryReport{
		NotificationID: note.ID,
		Status:         models.DeliveryDisabled,
		Channels:       map[string]bool{},
		SentAt:         d.now().UTC().Format(time.RFC3339),
	}

	contact, err := d.contacts.GetContact(ctx, note.CandidateID)
	if err != nil {
		if !stderrors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		d.logger.Warn("no contact for candidate", map[string]interface{}{
			"candidateId":   note.CandidateID,
			"applicationId": note.ApplicationID,
		})
		contact = &models.Contact{CandidateID: note.CandidateID}
	}

	tmpl, ok := d.templates[note.Status]
	if !ok {
		tmpl = fallbackTemplate
	}
	data := templateData(note, contact)
	subject := renderTemplate(tmpl.Subject, data)
	body := renderTemplate(tmpl.Body, data)

	if d.config.EmailEnabled && contact.Email != "" && d.ses != nil {
		report.Channels[models.ChannelEmail] = d.send(models.ChannelEmail, note, d.sendEmail(ctx, contact.Email, subject, body))
	}
	if d.config.SMSEnabled && contact.Phone != "" && d.sns != nil && d.config.smsFor(note.Status) {
		report.Channels[models.ChannelSMS] = d.send(models.ChannelSMS, note, d.sendSMS(ctx, contact.Phone, body))
	}
	if d.config.TopicEnabled && d.config.TopicARN != "" && d.sns != nil {
		report.Channels[models.ChannelTopic] = d.send(models.ChannelTopic, note, d.publishTopic(ctx, note))
	}

	for _, ok := range report.Channels {
		if !ok {
			report.Status = models.DeliveryFailed
			break
		}
		report.Status = models.DeliverySent
	}
	return report, nil
}

func (d *AWSDispatcher) send(channel string, note models.StatusNotification, err error) bool {
	if err != nil {
		d.logger.Error("notification channel failed", map[string]interface{}{
			"channel":        channel,
			"notificationId": note.ID,
			"applicationId":  note.ApplicationID,
			"error":          err,
		})
		return false
	}
	return true
}

func (d *AWSDispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := d.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.config.FromEmail),
	})
	return err
}

func (d *AWSDispatcher) sendSMS(ctx context.Context, to, message string) error {
	_, err := d.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func (d *AWSDispatcher) publishTopic(ctx context.Context, note models.StatusNotification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	_, err = d.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.config.TopicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"status": {DataType: aws.String("String"), StringValue: aws.String(string(note.Status))},
		},
	})
	return err
}

// LogDispatcher only logs. Used when no delivery backend is configured.
type LogDispatcher struct {
	logger logger.Logger
}

func NewLogDispatcher(log logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &LogDispatcher{logger: log}
}

func (d *LogDispatcher) Notify(ctx context.Context, note models.StatusNotification) error {
	d.logger.Info("candidate notification", map[string]interface{}{
		"notificationId":  note.ID,
		"applicationId":   note.ApplicationID,
		"candidateId":     note.CandidateID,
		"status":          note.Status,
		"rejectionReason": note.RejectionReason,
	})
	return nil
}

// Deliver logs note and reports it as disabled.
func (d *LogDispatcher) Deliver(ctx context.Context, note models.StatusNotification) (*models.DeliveryReport, error) {
	if err := d.Notify(ctx, note); err != nil {
		return nil, err
	}
	return &models.DeliveryReport{
		NotificationID: note.ID,
		Status:         models.DeliveryDisabled,
		Channels:       map[string]bool{},
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}, nil
}
