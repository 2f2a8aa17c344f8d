package links

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const (
	defaultSlugLength = 6
	defaultValidity   = 30 * time.Minute

	// Longest validity whose duration still fits in a time.Duration.
	maxValidityMinutes = math.MaxInt64 / int64(time.Minute)
)

// Route segments that a custom shortcode may not shadow.
var reservedShortcodes = map[string]struct{}{
	"health":    {},
	"metrics":   {},
	"shorturls": {},
	"log":       {},
	"ui":        {},
}

type Options struct {
	SlugLength      int
	DefaultValidity time.Duration
}

type Service struct {
	linkRepo        LinkRepository
	locator         Locator
	publisher       ClickPublisher
	slugger         Slugger
	slugLength      int
	defaultValidity time.Duration
	now             func() time.Time
}

// NewService wires the link service. locator and publisher may be nil, in
// which case clicks are recorded with an unknown location and not published.
func NewService(linkRepo LinkRepository, locator Locator, publisher ClickPublisher, slugger Slugger, opts Options) *Service {
	if opts.SlugLength <= 0 {
		opts.SlugLength = defaultSlugLength
	}
	if opts.DefaultValidity <= 0 {
		opts.DefaultValidity = defaultValidity
	}

	return &Service{
		linkRepo:        linkRepo,
		locator:         locator,
		publisher:       publisher,
		slugger:         slugger,
		slugLength:      opts.SlugLength,
		defaultValidity: opts.DefaultValidity,
		now:             time.Now,
	}
}

func (s *Service) CreateLink(ctx context.Context, in CreateLinkInput) (*Link, error) {
	target := strings.TrimSpace(in.URL)
	if target == "" {
		return nil, ErrInvalidURL
	}

	validity := s.defaultValidity
	if in.Validity != nil {
		if *in.Validity < 0 || int64(*in.Validity) > maxValidityMinutes {
			return nil, ErrInvalidValidity
		}
		validity = time.Duration(*in.Validity) * time.Minute
	}

	slug := strings.TrimSpace(in.Shortcode)
	if slug != "" {
		if _, reserved := reservedShortcodes[strings.ToLower(slug)]; reserved {
			return nil, ErrReservedShortcode
		}
	} else {
		generated, err := s.slugger.Generate(s.slugLength)
		if err != nil {
			return nil, err
		}
		slug = generated
	}

	createdAt := s.now().UTC()
	link := &Link{
		Slug:      slug,
		URL:       target,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(validity),
		ClickLog:  []Click{},
	}

	// A generated code that collides is reported like a custom one.
	if err := s.linkRepo.Insert(ctx, link); err != nil {
		return nil, err
	}

	metrics.LinksCreated.Inc()
	return link, nil
}

func (s *Service) GetLink(ctx context.Context, slug string) (*Link, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrNotFound
	}

	return s.linkRepo.FindBySlug(ctx, slug)
}

func (s *Service) Resolve(ctx context.Context, slug string) (*Link, error) {
	link, err := s.GetLink(ctx, slug)
	if err != nil {
		return nil, err
	}

	if link.Expired(s.now()) {
		return nil, ErrExpired
	}

	return link, nil
}

// RecordClick geolocates the visitor, appends the click and bumps the counter.
// Geolocation and publishing failures never fail the click.
func (s *Service) RecordClick(ctx context.Context, slug string, in ClickInput) (Click, error) {
	click := Click{
		Timestamp: s.now().UTC(),
		IP:        strings.TrimSpace(in.IP),
		Source:    strings.TrimSpace(in.Referrer),
		Location:  s.locate(ctx, strings.TrimSpace(in.IP)),
	}
	if click.Source == "" {
		click.Source = DirectSource
	}

	if _, err := s.linkRepo.AppendClick(ctx, slug, click); err != nil {
		return Click{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishClick(ctx, slug, click); err != nil {
			logger.Warn("failed to publish click event", zap.Error(err), zap.String("slug", slug))
		}
	}

	return click, nil
}

func (s *Service) GetStats(ctx context.Context, slug string) (*Stats, error) {
	link, err := s.GetLink(ctx, slug)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Slug:        link.Slug,
		URL:         link.URL,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		TotalClicks: link.Clicks,
		Clicks:      link.ClickLog,
	}, nil
}

func (s *Service) locate(ctx context.Context, ip string) string {
	if s.locator == nil || ip == "" {
		return UnknownLocation
	}

	country, err := s.locator.Locate(ctx, ip)
	if err != nil {
		logger.Warn("geolocation lookup failed", zap.Error(err), zap.String("ip", ip))
		return UnknownLocation
	}
	if strings.TrimSpace(country) == "" {
		return UnknownLocation
	}
	return country
}
