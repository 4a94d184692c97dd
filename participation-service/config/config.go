package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	sharedConfig "transparencia-backend/shared/config"
)

// ParticipationConfig extends the shared configuration with the mail queue
// and the defaults of the participation inbox
type ParticipationConfig struct {
	*sharedConfig.Config

	Mail   MailConfig
	Submit SubmitLimit
}

type MailConfig struct {
	Enabled            bool          `env:"MAIL_ENABLED" envDefault:"true"`
	QueueSize          int           `env:"MAIL_QUEUE_SIZE" envDefault:"1000"`
	RetryAttempts      int           `env:"MAIL_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay         time.Duration `env:"MAIL_RETRY_DELAY" envDefault:"30s"`
	InternalRecipients []string      `env:"MAIL_INTERNAL_NOTIFICATIONS" envSeparator:"," envDefault:"admin@morelos.gob.mx"`
	DefaultArea        string        `env:"PARTICIPATION_DEFAULT_AREA" envDefault:"Unidad de Transparencia Fiscal"`
}

// SubmitLimit throttles the public message form per client IP
type SubmitLimit struct {
	RequestsPerSecond float64       `env:"PARTICIPATION_SUBMIT_RPS" envDefault:"0.1"`
	Burst             int           `env:"PARTICIPATION_SUBMIT_BURST" envDefault:"3"`
	BlockDuration     time.Duration `env:"PARTICIPATION_SUBMIT_BLOCK" envDefault:"10m"`
}

var participationConfig *ParticipationConfig

// LoadParticipationConfig reads the mail settings on top of the shared config
func LoadParticipationConfig() (*ParticipationConfig, error) {
	if participationConfig != nil {
		return participationConfig, nil
	}

	mail := MailConfig{}
	if err := env.Parse(&mail); err != nil {
		return nil, err
	}
	mail.InternalRecipients = cleanRecipients(mail.InternalRecipients)

	submit := SubmitLimit{}
	if err := env.Parse(&submit); err != nil {
		return nil, err
	}

	participationConfig = &ParticipationConfig{
		Config: sharedConfig.GetConfig(),
		Mail:   mail,
		Submit: submit,
	}
	return participationConfig, nil
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
