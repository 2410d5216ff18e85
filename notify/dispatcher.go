package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maintflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	MaxConcurrency     = 10
	DefaultSendTimeout = 5 * time.Second

	ReasonTimeout = "timeout"
)

type Outcome string

const (
	OutcomeSent   Outcome = "SENT"
	OutcomeFailed Outcome = "FAILED"
)

type Message struct {
	ID        string
	Recipient domain.Recipient
	Subject   string
	Body      string
}

// Transport delivers one rendered message. Implementations must honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Record is the outcome of one send attempt, it is returned to the caller and never stored.
type Record struct {
	Recipient domain.Recipient `json:"recipient"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	Outcome   Outcome          `json:"outcome"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Snapshot is the entity view rendered into messages.
type Snapshot struct {
	EntityID  types.ID
	Kind      domain.Kind
	State     domain.State
	Amount    domain.Amount
	Title     string
	SiteName  string
	Reference string
	Severity  string
}

type Options struct {
	Concurrency    int
	SendTimeout    time.Duration
	Locale         string
	LinkBaseURL    string
	CurrencySymbol string
}

type DispatcherTraits interface {
	Template(kind domain.Kind, reached domain.State) *Template
	Dispatch(ctx context.Context, recipients []domain.Recipient, tpl *Template, snapshot Snapshot) []Record
}

type templateKey struct {
	kind  domain.Kind
	state domain.State
}

type Dispatcher struct {
	transport Transport
	templates map[templateKey]*Template
	options   Options
	printer   *message.Printer
	now       func() time.Time
}

func NewDispatcher(transport Transport, options Options) (*Dispatcher, error) {
	if transport == nil {
		return nil, errors.New("notification transport is required")
	}
	if options.Concurrency <= 0 || options.Concurrency > MaxConcurrency {
		options.Concurrency = MaxConcurrency
	}
	if options.SendTimeout <= 0 {
		options.SendTimeout = DefaultSendTimeout
	}
	tag := language.English
	if options.Locale != "" {
		parsed, err := language.Parse(options.Locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", options.Locale, err)
		}
		tag = parsed
	}
	return &Dispatcher{
		transport: transport,
		templates: defaultTemplates(),
		options:   options,
		printer:   message.NewPrinter(tag),
		now:       time.Now,
	}, nil
}

// Register overrides the template used when an entity of kind reaches the given state.
func (d *Dispatcher) Register(kind domain.Kind, reached domain.State, tpl *Template) {
	d.templates[templateKey{kind: kind, state: reached}] = tpl
}

func (d *Dispatcher) Template(kind domain.Kind, reached domain.State) *Template {
	if t, ok := d.templates[templateKey{kind: kind, state: reached}]; ok {
		return t
	}
	return fallbackTemplate
}

// FormatAmount groups digits the way the configured locale does.
func (d *Dispatcher) FormatAmount(amount domain.Amount) string {
	return d.printer.Sprintf("%d", int64(amount))
}

// Dispatch sends one message per recipient and returns one record per recipient in recipient order.
// A failed send never prevents or cancels the others.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []domain.Recipient, tpl *Template, snapshot Snapshot) []Record {
	records := make([]Record, len(recipients))
	if len(recipients) == 0 {
		return records
	}
	if tpl == nil {
		tpl = d.Template(snapshot.Kind, snapshot.State)
	}

	var g errgroup.Group
	g.SetLimit(d.options.Concurrency)
	for i := range recipients {
		i := i
		g.Go(func() error {
			records[i] = d.deliver(ctx, recipients[i], tpl, snapshot)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (d *Dispatcher) deliver(ctx context.Context, recipient domain.Recipient, tpl *Template, snapshot Snapshot) (record Record) {
	record.Recipient = recipient
	defer func() {
		record.Timestamp = d.now().UTC()
	}()

	subject, body, err := d.render(tpl, recipient, snapshot)
	if err != nil {
		record.Outcome, record.Reason = OutcomeFailed, "render: "+err.Error()
		d.logFailure(snapshot, recipient, record.Reason)
		return record
	}
	record.Subject, record.Body = subject, body

	span, spanCtx := opentracing.StartSpanFromContext(ctx, "notify.send")
	defer span.Finish()
	span.SetTag("notify.recipient.role", recipient.Role)
	span.SetTag("workflow.entity.id", snapshot.EntityID.String())

	sendCtx, cancel := context.WithTimeout(spanCtx, d.options.SendTimeout)
	defer cancel()

	msg := Message{ID: uuid.NewString(), Recipient: recipient, Subject: subject, Body: body}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if ret := recover(); ret != nil {
				done <- fmt.Errorf("transport panic: %v", ret)
			}
		}()
		done <- d.transport.Send(sendCtx, msg)
	}()

	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = sendCtx.Err()
	}

	if err == nil {
		record.Outcome = OutcomeSent
		return record
	}
	record.Outcome = OutcomeFailed
	if errors.Is(err, context.DeadlineExceeded) {
		record.Reason = ReasonTimeout
	} else {
		record.Reason = err.Error()
	}
	ext.Error.Set(span, true)
	span.SetTag("notify.failure", record.Reason)
	d.logFailure(snapshot, recipient, record.Reason)
	return record
}

func (d *Dispatcher) logFailure(snapshot Snapshot, recipient domain.Recipient, reason string) {
	logrus.WithFields(logrus.Fields{
		"entityId":  snapshot.EntityID.String(),
		"kind":      snapshot.Kind,
		"state":     snapshot.State,
		"recipient": recipient.Email,
	}).Warnf("notification failed: %s", reason)
}

type templateData struct {
	EntityID       string
	Kind           domain.Kind
	KindLabel      string
	State          domain.State
	Title          string
	Amount         string
	CurrencySymbol string
	SiteName       string
	Reference      string
	Severity       string
	Link           string
	RecipientName  string
	RecipientRole  string
}

func (d *Dispatcher) render(tpl *Template, recipient domain.Recipient, snapshot Snapshot) (string, string, error) {
	label, ok := kindLabels[snapshot.Kind]
	if !ok {
		label = string(snapshot.Kind)
	}
	name := recipient.Name
	if name == "" {
		name = recipient.Role
	}
	data := templateData{
		EntityID:       snapshot.EntityID.String(),
		Kind:           snapshot.Kind,
		KindLabel:      label,
		State:          snapshot.State,
		Title:          snapshot.Title,
		Amount:         d.FormatAmount(snapshot.Amount),
		CurrencySymbol: d.options.CurrencySymbol,
		SiteName:       snapshot.SiteName,
		Reference:      snapshot.Reference,
		Severity:       snapshot.Severity,
		Link:           strings.TrimRight(d.options.LinkBaseURL, "/") + "/entities/" + snapshot.EntityID.String(),
		RecipientName:  name,
		RecipientRole:  recipient.Role,
	}
	var subject, body strings.Builder
	if err := tpl.Subject.Execute(&subject, data); err != nil {
		return "", "", err
	}
	if err := tpl.Body.Execute(&body, data); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}
