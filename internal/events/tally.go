package events

import (
	"sort"
	"sync"
)

type LinkTally struct {
	Slug       string
	Clicks     int64
	ByLocation map[string]int64
	BySource   map[string]int64
}

// Tally aggregates consumed click events per short link.
type Tally struct {
	mu    sync.Mutex
	links map[string]*LinkTally
}

func NewTally() *Tally {
	return &Tally{links: make(map[string]*LinkTally)}
}

func (t *Tally) Add(event ClickRecorded) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lt, ok := t.links[event.Slug]
	if !ok {
		lt = &LinkTally{
			Slug:       event.Slug,
			ByLocation: make(map[string]int64),
			BySource:   make(map[string]int64),
		}
		t.links[event.Slug] = lt
	}
	lt.Clicks++
	lt.ByLocation[event.Location]++
	lt.BySource[event.Source]++
}

// Snapshot returns copies ordered by click count, highest first.
func (t *Tally) Snapshot() []LinkTally {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]LinkTally, 0, len(t.links))
	for _, lt := range t.links {
		cp := LinkTally{
			Slug:       lt.Slug,
			Clicks:     lt.Clicks,
			ByLocation: make(map[string]int64, len(lt.ByLocation)),
			BySource:   make(map[string]int64, len(lt.BySource)),
		}
		for k, v := range lt.ByLocation {
			cp.ByLocation[k] = v
		}
		for k, v := range lt.BySource {
			cp.BySource[k] = v
		}
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}
