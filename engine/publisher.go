package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ventslog "github.com/nlowe/vents2mqtt/log"
	"github.com/nlowe/vents2mqtt/mapper"
	"github.com/nlowe/vents2mqtt/mqtt"
)

// Publisher writes one retained discovery record per catalog register.
type Publisher struct {
	mapper *mapper.Mapper
	writer mqtt.Writer
	qos    mqtt.QualityOfService

	log *slog.Logger
}

func NewPublisher(m *mapper.Mapper, w mqtt.Writer, qos mqtt.QualityOfService) *Publisher {
	return &Publisher{
		mapper: m,
		writer: w,
		qos:    qos,
		log:    ventslog.ForComponent("discovery"),
	}
}

// PublishAll iterates the catalog once and publishes the discovery record of every register. A record that fails to
// marshal or publish does not stop the others; all failures are joined into the returned error.
func (p *Publisher) PublishAll(ctx context.Context) error {
	var errs []error
	published := 0

	for _, d := range p.mapper.Catalog().All() {
		c := p.mapper.Discovery(d)

		payload, err := c.Marshal()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err = p.writer.WriteTopic(ctx, c.Topic(p.mapper.DiscoveryPrefix()), mqtt.Retained(p.qos), payload); err != nil {
			errs = append(errs, fmt.Errorf("publish discovery for %s: %w", d.Name, err))
			continue
		}

		published++
	}

	p.log.With(slog.Int("published", published), slog.Int("failed", len(errs))).Info("Published discovery records")
	return errors.Join(errs...)
}
