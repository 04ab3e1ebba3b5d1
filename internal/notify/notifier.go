// Package notify pushes raised panel alerts to an outbound webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	farm "solarfarm-cloud/internal/farm/domain"
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

// Notifier renders panel alerts and delivers them through a channel.
type Notifier struct {
	channel        Channel
	template       *Template
	clock          Clock
	logger         *log.Logger
	minSeverity    string
	cooldown       time.Duration
	requestTimeout time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
	wg   sync.WaitGroup
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithMinSeverity drops alerts below severity.
func WithMinSeverity(severity string) Option {
	return func(n *Notifier) {
		if severity != "" {
			n.minSeverity = severity
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same panel and alert type.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithRequestTimeout bounds each delivery.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		minSeverity:    farm.SeverityMedium,
		requestTimeout: 5 * time.Second,
		sent:           make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify delivers an alert in the background. It never blocks the caller on the network.
func (n *Notifier) Notify(ctx context.Context, alert farm.Alert) {
	if n == nil || n.channel == nil {
		return
	}
	if !severityAtLeast(alert.Severity, n.minSeverity) {
		return
	}
	content, err := n.template.Render(buildTemplateData(alert))
	if err != nil {
		n.logf("notify: render failed: alert=%s err=%v", alert.ID, err)
		return
	}
	if !n.claim(notificationKey(alert)) {
		return
	}

	msg := Message{
		AlertID:  alert.ID,
		PanelID:  alert.PanelID,
		SectorID: alert.SectorID,
		Type:     alert.Type,
		Severity: alert.Severity,
		Content:  content,
	}
	sendCtx := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(sendCtx, n.requestTimeout)
		defer cancel()
		if err := n.channel.Send(sendCtx, msg); err != nil {
			n.logf("notify: send failed: alert=%s panel=%s err=%v", alert.ID, alert.PanelID, err)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) logf(format string, args ...any) {
	if n.logger != nil {
		n.logger.Printf(format, args...)
	}
}

// claim reports whether key is outside its cooldown and, if so, records the send.
func (n *Notifier) claim(key string) bool {
	now := n.clock.Now().UTC()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.sent[key]; ok && n.cooldown > 0 && now.Sub(last) < n.cooldown {
		return false
	}
	n.sent[key] = now
	return true
}

func buildTemplateData(alert farm.Alert) TemplateData {
	return TemplateData{
		AlertID:    alert.ID,
		PanelID:    alert.PanelID,
		SectorID:   alert.SectorID,
		Type:       alert.Type,
		Severity:   alert.Severity,
		Message:    alert.Message,
		Value:      fmt.Sprintf("%.2f", alert.Value),
		RaisedAt:   alert.Timestamp.UTC().Format(time.RFC3339),
		Suggestion: suggestionFor(alert),
	}
}

func suggestionFor(alert farm.Alert) string {
	switch {
	case alert.Type == farm.AlertDustHigh && alert.Severity == farm.SeverityHigh:
		return "Schedule cleaning for this panel now."
	case alert.Type == farm.AlertDustHigh:
		return "Add the panel to the next sector cleaning."
	case alert.Type == farm.AlertEfficiencyLow && alert.Severity == farm.SeverityHigh:
		return "Inspect the panel for damage or shading."
	default:
		return "Monitor the panel for 48 hours."
	}
}

func severityAtLeast(value, target string) bool {
	return severityRank(value) >= severityRank(target)
}

func severityRank(value string) int {
	switch value {
	case farm.SeverityHigh:
		return 3
	case farm.SeverityMedium:
		return 2
	case farm.SeverityLow:
		return 1
	default:
		return 0
	}
}

func notificationKey(alert farm.Alert) string {
	return alert.PanelID + "|" + alert.Type
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
