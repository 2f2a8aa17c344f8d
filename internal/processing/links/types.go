package links

import (
	"strings"
	"time"
)

// UnknownLocation is recorded when a click cannot be geolocated.
const UnknownLocation = "unknown"

// DirectSource is recorded when a click carries no referrer.
const DirectSource = "direct"

type Link struct {
	Slug      string
	URL       string
	CreatedAt time.Time
	ExpiresAt time.Time
	Clicks    int64
	ClickLog  []Click
}

// Expired reports whether the link no longer redirects at the given instant.
// The expiry instant itself still resolves.
func (l *Link) Expired(now time.Time) bool {
	return expiredAt(l.ExpiresAt, now)
}

func expiredAt(expiry, now time.Time) bool {
	return now.After(expiry)
}

type Click struct {
	Timestamp time.Time
	IP        string
	Source    string
	Location  string
}

type CreateLinkInput struct {
	URL       string
	Validity  *int // minutes; nil means the service default
	Shortcode string
}

type ClickInput struct {
	IP       string
	Referrer string
}

type Stats struct {
	Slug        string
	URL         string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	TotalClicks int64
	Clicks      []Click
}

func (s *Stats) Expired(now time.Time) bool {
	return expiredAt(s.ExpiresAt, now)
}

// ShortURL joins the public base URL and a slug.
func ShortURL(baseURL, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/" + slug
}
