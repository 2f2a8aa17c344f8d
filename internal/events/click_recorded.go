package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ClickRecorded is emitted when a redirect click is accepted by the API.
type ClickRecorded struct {
	EventID    string `json:"eventId"`
	Slug       string `json:"slug"`
	OccurredAt string `json:"occurredAt"`
	IP         string `json:"ip"`
	Source     string `json:"source"`
	Location   string `json:"location"`
}

func NewClickRecorded(slug string, click links.Click) ClickRecorded {
	return ClickRecorded{
		EventID:    uuid.NewString(),
		Slug:       slug,
		OccurredAt: click.Timestamp.UTC().Format(time.RFC3339Nano),
		IP:         click.IP,
		Source:     click.Source,
		Location:   click.Location,
	}
}

var ErrMissingSlug = errors.New("click event missing slug")

// DecodeClickRecorded parses a message value. fallback is used when the
// event carries no usable occurredAt.
func DecodeClickRecorded(value []byte, fallback time.Time) (ClickRecorded, time.Time, error) {
	var event ClickRecorded
	if err := json.Unmarshal(value, &event); err != nil {
		return ClickRecorded{}, time.Time{}, fmt.Errorf("decode click event: %w", err)
	}
	if strings.TrimSpace(event.Slug) == "" {
		return ClickRecorded{}, time.Time{}, ErrMissingSlug
	}

	occurredAt := fallback.UTC()
	if parsed, err := time.Parse(time.RFC3339Nano, event.OccurredAt); err == nil {
		occurredAt = parsed.UTC()
	}
	return event, occurredAt, nil
}

// InjectHeaders carries the trace context of ctx into Kafka headers.
func InjectHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier))
	for key, value := range carrier {
		if strings.TrimSpace(value) == "" {
			continue
		}
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return headers
}

// ExtractHeaders restores a trace context previously written by InjectHeaders.
func ExtractHeaders(parent context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header.Key))
		if key == "" {
			continue
		}
		carrier.Set(key, string(header.Value))
	}
	return otel.GetTextMapPropagator().Extract(parent, carrier)
}
