// Package search ranks the visible item list against the current
// query, either by embedding similarity or by plain substring match.
// The controller never fetches items itself; it re-ranks whatever list
// the caller hands it.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lostfound-ai/internal/ai"
	"lostfound-ai/internal/item"
	"lostfound-ai/internal/vectormath"
)

// Mode selects the ranking strategy.
type Mode int

const (
	ModeKeyword Mode = iota
	ModeSemantic
)

func (m Mode) String() string {
	if m == ModeSemantic {
		return "semantic"
	}
	return "keyword"
}

// ParseMode maps the wire value to a Mode, defaulting to keyword.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, "semantic") {
		return ModeSemantic
	}
	return ModeKeyword
}

// Embedder is the slice of the AI client the controller needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string, task ai.TaskKind) ([]float32, error)
}

// Options tune the controller. Zero values fall back to the defaults
// the engine ships with.
type Options struct {
	Debounce       time.Duration // wait after the last keystroke before embedding
	Floor          float32       // minimum similarity for long queries
	MinSemanticLen int           // shortest query that triggers embedding
	MinFilterLen   int           // shortest query the floor applies to
}

func (o *Options) fill() {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.Floor == 0 {
		o.Floor = 0.4
	}
	if o.MinSemanticLen <= 0 {
		o.MinSemanticLen = 3
	}
	if o.MinFilterLen <= 0 {
		o.MinFilterLen = 5
	}
}

// Controller debounces query embedding and ranks item lists. A
// monotonic generation counter discards responses from superseded
// queries regardless of arrival order.
type Controller struct {
	embedder Embedder
	opts     Options

	mu       sync.Mutex
	mode     Mode
	query    string
	queryVec []float32
	loading  bool
	gen      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
}

// NewController creates a search controller in keyword mode.
func NewController(embedder Embedder, opts Options) *Controller {
	opts.fill()
	return &Controller{embedder: embedder, opts: opts}
}

// SetMode switches the ranking strategy. Entering keyword mode cancels
// any pending embedding; entering semantic mode re-schedules one for
// the current query.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == m {
		return
	}
	c.mode = m
	c.resetLocked()
	if m == ModeSemantic {
		c.scheduleLocked()
	}
}

// SetQuery records the query and, in semantic mode, schedules its
// embedding after the debounce interval. Each call supersedes the
// previous one.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q == c.query {
		// Polling clients repeat the query; restarting the debounce
		// would keep the embedding pending forever.
		return
	}
	c.query = q
	c.resetLocked()
	if c.mode == ModeSemantic {
		c.scheduleLocked()
	}
}

// resetLocked cancels the pending timer and in-flight embedding and
// drops the stale query vector. Callers hold mu.
func (c *Controller) resetLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.queryVec = nil
	c.loading = false
}

// scheduleLocked arms the debounce timer for the current query when it
// is long enough to embed. Callers hold mu.
func (c *Controller) scheduleLocked() {
	q := strings.TrimSpace(c.query)
	if len(q) < c.opts.MinSemanticLen {
		return
	}
	gen := c.gen
	c.loading = true
	c.timer = time.AfterFunc(c.opts.Debounce, func() {
		c.embed(q, gen)
	})
}

func (c *Controller) embed(q string, gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	vec, err := c.embedder.EmbedText(ctx, q, ai.TaskQuery)
	if err != nil {
		vec = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// A newer query superseded this one while the call was in
		// flight; its result wins regardless of arrival order.
		return
	}
	c.cancel = nil
	c.queryVec = vec
	c.loading = false
}

// Loading reports whether a query embedding is pending or in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Close cancels any pending work.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Rank orders items against the current query. With a query vector
// available it attaches transient similarities and sorts descending,
// applying the similarity floor only to queries long enough to carry
// intent; otherwise it falls back to case-insensitive substring
// matching over name tag, description and location. An empty query
// returns the list unchanged.
func (c *Controller) Rank(items []item.Item) []item.Item {
	c.mu.Lock()
	mode, query, queryVec := c.mode, c.query, c.queryVec
	c.mu.Unlock()

	q := strings.TrimSpace(query)
	if q == "" {
		return append([]item.Item(nil), items...)
	}

	if mode == ModeSemantic && queryVec != nil {
		return rankBySimilarity(items, queryVec, c.floorFor(q))
	}
	return filterByKeyword(items, q)
}

// floorFor returns the similarity floor for a query, or -1 when the
// query is too short for the floor to apply.
func (c *Controller) floorFor(q string) float32 {
	if len(q) < c.opts.MinFilterLen {
		return -1
	}
	return c.opts.Floor
}

func rankBySimilarity(items []item.Item, queryVec []float32, floor float32) []item.Item {
	ranked := make([]item.Item, 0, len(items))
	for _, it := range items {
		it.Similarity = vectormath.CosineSimilarity(queryVec, it.Embedding)
		if it.Similarity >= floor {
			ranked = append(ranked, it)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	return ranked
}

func filterByKeyword(items []item.Item, q string) []item.Item {
	needle := strings.ToLower(q)
	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		haystack := strings.ToLower(it.NameTag + " " + it.Description + " " + it.Location)
		if strings.Contains(haystack, needle) {
			out = append(out, it)
		}
	}
	return out
}
