package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maintflow/notify"

	gomail "github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

type Config struct {
	Host          string        `mapstructure:"host" validate:"required"`
	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	From          string        `mapstructure:"from" validate:"required,email"`
	FromName      string        `mapstructure:"fromName"`
	TLSPolicy     string        `mapstructure:"tlsPolicy" validate:"omitempty,oneof=mandatory opportunistic none"`
	SSL           bool          `mapstructure:"ssl"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"ratePerSecond"`
	Burst         int           `mapstructure:"burst"`
}

// Transport delivers notifications over SMTP. Credentials stay inside this type.
type Transport struct {
	config  Config
	limiter *rate.Limiter

	deliver func(ctx context.Context, msg *gomail.Msg) error
}

func NewTransport(config Config) (*Transport, error) {
	if config.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if config.From == "" {
		return nil, errors.New("smtp sender is required")
	}
	limit, burst := rate.Inf, config.Burst
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	t := &Transport{config: config, limiter: rate.NewLimiter(limit, burst)}
	t.deliver = t.dialAndSend
	return t, nil
}

func (t *Transport) Send(ctx context.Context, msg notify.Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("smtp rate limit: %w", err)
	}
	m, err := t.BuildMessage(msg)
	if err != nil {
		return err
	}
	return t.deliver(ctx, m)
}

func (t *Transport) BuildMessage(msg notify.Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(t.config.FromName, t.config.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.AddToFormat(msg.Recipient.Name, msg.Recipient.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient %s: %w", msg.Recipient.Email, err)
	}
	if msg.ID != "" {
		m.SetMessageIDWithValue(msg.ID)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

func (t *Transport) clientOptions() []gomail.Option {
	opts := []gomail.Option{gomail.WithTLSPolicy(tlsPolicy(t.config.TLSPolicy))}
	if t.config.Port > 0 {
		opts = append(opts, gomail.WithPort(t.config.Port))
	}
	if t.config.Username != "" {
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.config.Username), gomail.WithPassword(t.config.Password))
	}
	if t.config.SSL {
		opts = append(opts, gomail.WithSSL())
	}
	if t.config.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(t.config.Timeout))
	}
	return opts
}

func (t *Transport) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(t.config.Host, t.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func tlsPolicy(name string) gomail.TLSPolicy {
	switch name {
	case "none":
		return gomail.NoTLS
	case "opportunistic":
		return gomail.TLSOpportunistic
	default:
		return gomail.TLSMandatory
	}
}
