// Package memory keeps short links in a process-wide map. Nothing is
// persisted and nothing is evicted.
package memory

import (
	"context"
	"sync"

	"github.com/IgorGrieder/linkstats/internal/processing/links"
)

type LinksRepository struct {
	mu    sync.RWMutex
	links map[string]*links.Link
}

func NewLinksRepository() *LinksRepository {
	return &LinksRepository{
		links: make(map[string]*links.Link),
	}
}

func (r *LinksRepository) Insert(_ context.Context, link *links.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.Slug]; exists {
		return links.ErrSlugTaken
	}

	r.links[link.Slug] = cloneLink(link)
	return nil
}

func (r *LinksRepository) FindBySlug(_ context.Context, slug string) (*links.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[slug]
	if !ok {
		return nil, links.ErrNotFound
	}

	return cloneLink(link), nil
}

func (r *LinksRepository) AppendClick(_ context.Context, slug string, click links.Click) (*links.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[slug]
	if !ok {
		return nil, links.ErrNotFound
	}

	link.ClickLog = append(link.ClickLog, click)
	link.Clicks++

	return cloneLink(link), nil
}

// Len reports how many links are stored.
func (r *LinksRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

// cloneLink copies the click log so callers never share the stored slice.
func cloneLink(link *links.Link) *links.Link {
	out := *link
	out.ClickLog = make([]links.Click, len(link.ClickLog))
	copy(out.ClickLog, link.ClickLog)
	return &out
}
