package links

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("link not found")
	ErrExpired           = errors.New("link expired")
	ErrInvalidURL        = errors.New("invalid url")
	ErrInvalidValidity   = errors.New("invalid validity")
	ErrReservedShortcode = errors.New("shortcode reserved")
	ErrSlugTaken         = errors.New("slug taken")
)

type LinkRepository interface {
	// Insert stores link unless its slug is already present, in which case
	// it returns ErrSlugTaken and leaves the existing record untouched.
	Insert(ctx context.Context, link *Link) error
	FindBySlug(ctx context.Context, slug string) (*Link, error)
	// AppendClick records click and increments the counter in one step and
	// returns a snapshot of the updated link.
	AppendClick(ctx context.Context, slug string, click Click) (*Link, error)
}

type Slugger interface {
	Generate(length int) (string, error)
}

// Locator resolves an IP address to a country name.
type Locator interface {
	Locate(ctx context.Context, ip string) (string, error)
}

// ClickPublisher forwards accepted clicks to downstream consumers.
type ClickPublisher interface {
	PublishClick(ctx context.Context, slug string, click Click) error
}
