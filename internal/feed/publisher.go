package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"solarfarm-cloud/internal/farm/application"
)

// OverviewSource supplies consistent farm overviews.
type OverviewSource interface {
	Overview() application.Overview
}

// Publisher composes one snapshot per evolution tick and broadcasts it.
type Publisher struct {
	source   OverviewSource
	composer *Composer
	broker   *Broker
	logger   *log.Logger
}

// NewPublisher constructs a publisher.
func NewPublisher(source OverviewSource, composer *Composer, broker *Broker, logger *log.Logger) (*Publisher, error) {
	if source == nil {
		return nil, errors.New("feed: nil overview source")
	}
	if composer == nil || composer.rng == nil {
		return nil, errors.New("feed: nil composer")
	}
	if broker == nil {
		return nil, errors.New("feed: nil broker")
	}
	return &Publisher{source: source, composer: composer, broker: broker, logger: logger}, nil
}

// Broker returns the fan-out broker.
func (p *Publisher) Broker() *Broker {
	return p.broker
}

// Publish is an evolution tick hook. It skips composition when nobody listens.
func (p *Publisher) Publish(_ context.Context, _ time.Time) {
	if p.broker.Len() == 0 {
		return
	}
	payload, err := p.Current()
	if err != nil {
		if p.logger != nil {
			p.logger.Printf("feed: encode snapshot failed: err=%v", err)
		}
		return
	}
	p.broker.Broadcast(payload)
}

// Current composes and encodes a fresh snapshot.
func (p *Publisher) Current() ([]byte, error) {
	return json.Marshal(p.composer.Compose(p.source.Overview()))
}

// NewSession creates an idle subscriber session that writes through send.
func (p *Publisher) NewSession(send func([]byte) error) *Session {
	return newSession(p.broker, p.Current, send)
}
