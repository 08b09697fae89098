// Package engine reconciles redaction rules against a live document. It
// owns the redacted-element lifecycle, the region overlays, and the
// schedulers that coalesce document churn into bounded work.
package engine

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/h-vien/hidey/internal/bus"
	"github.com/h-vien/hidey/internal/config"
	"github.com/h-vien/hidey/internal/dom"
	"github.com/h-vien/hidey/internal/metrics"
	"github.com/h-vien/hidey/internal/pattern"
	"github.com/h-vien/hidey/internal/rules"
	"github.com/h-vien/hidey/internal/util"
)

// Attribute markers the engine stamps on nodes it owns. The mutation filter
// uses them to tell the engine's own writes apart from page activity.
const (
	MarkerAttr  = "data-hidey-redacted"
	OverlayAttr = "data-hidey-overlay"
)

const filterProp = "filter"

// Scheduling defaults. Mutation passes debounce from the last mutation;
// repositions throttle so continuous scrolling keeps a steady cadence.
const (
	DefaultMutationDebounce   = 50 * time.Millisecond
	DefaultRepositionDebounce = 25 * time.Millisecond
	DefaultBatchSize          = 50
	DefaultFrameInterval      = 16 * time.Millisecond
)

// Options tunes an Engine. Zero values fall back to the defaults above,
// the system clock, and a nil metrics collector.
type Options struct {
	Clock   Clock
	Logger  *util.Logger
	Bus     *bus.Bus
	Metrics *metrics.Collector

	MutationDebounce   time.Duration
	RepositionDebounce time.Duration
	BatchSize          int
	FrameInterval      time.Duration
}

// Engine applies one page's working set of rules and regions to a document
// and keeps it applied as the document mutates.
type Engine struct {
	doc     *dom.Document
	pageURL string
	host    string
	clock   Clock
	log     *util.Logger
	bus     *bus.Bus
	metrics *metrics.Collector

	batchSize     int
	frameInterval time.Duration

	mu         sync.Mutex
	cfg        config.Config
	site       rules.SiteSettings
	working    rules.WorkingSet
	deleteMode bool
	elements   map[*html.Node]*elementState
	overlays   []*overlayState
	selectors  map[string]dom.Selector
	generation int
	pending    []batchWork
	torn       bool

	sched          *scheduler
	cancelMutation func()
	cancelViewport func()

	// expected holds the filter value the engine last wrote per marked
	// node. The mutation filter compares against it without taking mu, so
	// the engine's own style writes never deadlock or trigger passes.
	expectMu sync.Mutex
	expected map[*html.Node]string
}

type elementState struct {
	node        *html.Node
	rulePattern string
	selector    string
	savedFilter string
	hadFilter   bool
	hovered     bool
	listeners   []*dom.Listener
}

// New builds an engine for a document and applies the config immediately.
func New(doc *dom.Document, pageURL string, cfg config.Config, opts Options) (*Engine, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("page url %q: missing or unparseable host", pageURL)
	}
	e := &Engine{
		doc:           doc,
		pageURL:       pageURL,
		host:          pattern.NormalizeHost(u.Hostname()),
		clock:         opts.Clock,
		log:           opts.Logger,
		bus:           opts.Bus,
		metrics:       opts.Metrics,
		batchSize:     opts.BatchSize,
		frameInterval: opts.FrameInterval,
		elements:      make(map[*html.Node]*elementState),
		selectors:     make(map[string]dom.Selector),
		expected:      make(map[*html.Node]string),
	}
	if e.clock == nil {
		e.clock = SystemClock()
	}
	if e.log == nil {
		e.log = util.NewLogger(util.LevelInfo)
	}
	if e.bus == nil {
		e.bus = bus.New()
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.frameInterval <= 0 {
		e.frameInterval = DefaultFrameInterval
	}
	mutation := opts.MutationDebounce
	if mutation <= 0 {
		mutation = DefaultMutationDebounce
	}
	reposition := opts.RepositionDebounce
	if reposition <= 0 {
		reposition = DefaultRepositionDebounce
	}
	e.sched = newScheduler(e.clock, mutation, reposition, e.Reconcile, e.Reposition)
	e.cancelMutation = doc.Observe(e.onMutations)
	e.cancelViewport = doc.ObserveViewport(e.sched.noteReposition)

	e.mu.Lock()
	e.applyLocked(cfg)
	e.mu.Unlock()
	return e, nil
}

// Apply swaps in a new config and reconciles immediately.
func (e *Engine) Apply(cfg config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyLocked(cfg)
}

// UpdateRules replaces the rule list, keeping regions and settings.
func (e *Engine) UpdateRules(list []rules.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.cfg
	cfg.Rules = rules.Merge(list)
	e.applyLocked(cfg)
}

// UpdateRegions replaces the region list, keeping rules and settings.
func (e *Engine) UpdateRegions(list []rules.Region) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.cfg
	cfg.Regions = append([]rules.Region(nil), list...)
	e.applyLocked(cfg)
}

// UpdateSettings replaces the settings for this page's site.
func (e *Engine) UpdateSettings(s rules.SiteSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s.BlurIntensity = rules.ClampIntensity(s.BlurIntensity)
	cfg := e.cfg
	if cfg.Sites == nil {
		cfg.Sites = make(map[string]rules.SiteSettings, 1)
	} else {
		sites := make(map[string]rules.SiteSettings, len(cfg.Sites))
		for k, v := range cfg.Sites {
			sites[k] = v
		}
		cfg.Sites = sites
	}
	cfg.Sites[e.host] = s
	e.applyLocked(cfg)
}

// SetGlobalEnabled flips the kill switch. Disabling restores the page.
func (e *Engine) SetGlobalEnabled(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.GlobalEnabled == v {
		return
	}
	cfg := e.cfg
	cfg.GlobalEnabled = v
	e.applyLocked(cfg)
}

// SetDeleteMode toggles delete mode: while on, clicking a redacted element
// or overlay publishes a removal request instead of the normal behavior.
func (e *Engine) SetDeleteMode(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleteMode == v {
		return
	}
	e.deleteMode = v
	if !e.torn {
		e.repositionOverlaysLocked()
	}
}

// DeleteMode reports whether delete mode is active.
func (e *Engine) DeleteMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteMode
}

// Reconcile runs a full pass now. The mutation debounce calls this; it is
// also the manual refresh entry point.
func (e *Engine) Reconcile() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconcileLocked()
}

// Reposition refreshes overlay geometry without re-running selectors.
func (e *Engine) Reposition() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.torn {
		return
	}
	e.repositionOverlaysLocked()
}

// Status is a point-in-time summary for the control surface.
type Status struct {
	PageURL          string           `json:"pageUrl"`
	Host             string           `json:"host"`
	GlobalEnabled    bool             `json:"globalEnabled"`
	SiteEnabled      bool             `json:"siteEnabled"`
	DeleteMode       bool             `json:"deleteMode"`
	ActiveRules      int              `json:"activeRules"`
	ActiveRegions    int              `json:"activeRegions"`
	RedactedElements int              `json:"redactedElements"`
	Overlays         int              `json:"overlays"`
	OrphanOverlays   int              `json:"orphanOverlays"`
	Metrics          metrics.Snapshot `json:"metrics"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	orphans := 0
	for _, ov := range e.overlays {
		if ov.orphan {
			orphans++
		}
	}
	return Status{
		PageURL:          e.pageURL,
		Host:             e.host,
		GlobalEnabled:    e.cfg.GlobalEnabled,
		SiteEnabled:      e.site.Enabled,
		DeleteMode:       e.deleteMode,
		ActiveRules:      len(e.working.Rules),
		ActiveRegions:    len(e.working.Regions),
		RedactedElements: len(e.elements),
		Overlays:         len(e.overlays),
		OrphanOverlays:   orphans,
		Metrics:          e.metrics.Snapshot(),
	}
}

// Teardown restores every element and overlay and stops all scheduling.
// The document is left as if the engine had never touched it.
func (e *Engine) Teardown() {
	e.mu.Lock()
	if e.torn {
		e.mu.Unlock()
		return
	}
	e.torn = true
	e.generation++
	e.cancelBatchesLocked()
	e.restoreAllLocked()
	e.removeAllOverlaysLocked()
	e.mu.Unlock()

	e.sched.stop()
	e.cancelMutation()
	e.cancelViewport()
}

func (e *Engine) applyLocked(cfg config.Config) {
	e.cfg = cfg
	e.site = rules.SettingsFor(cfg.Sites, e.host)
	e.working = rules.Select(cfg.Rules, cfg.Regions, e.pageURL, e.site)
	e.countSkippedPatternsLocked()
	e.reconcileLocked()
}

// countSkippedPatternsLocked records URL patterns that fail to compile and
// so can never match.
func (e *Engine) countSkippedPatternsLocked() {
	seen := make(map[string]bool)
	note := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		if !pattern.Compile(p).Valid() {
			e.metrics.RecordSkippedPattern()
			e.log.Warnf("unusable url pattern %q", p)
		}
	}
	for _, r := range e.cfg.Rules {
		note(r.URLPattern)
	}
	for _, g := range e.cfg.Regions {
		note(g.URLPattern)
	}
}

// reconcileLocked is the single full pass: it supersedes in-flight batch
// work, restores elements that should no longer be redacted, re-asserts
// drifted ones, schedules batches for new matches, and syncs overlays.
func (e *Engine) reconcileLocked() {
	if e.torn {
		return
	}
	e.generation++
	e.cancelBatchesLocked()
	e.metrics.RecordPass(e.clock.Now())

	if !e.cfg.GlobalEnabled || !e.site.Enabled {
		e.restoreAllLocked()
		e.removeAllOverlaysLocked()
		return
	}

	desired := e.desiredElementsLocked()
	for _, st := range e.trackedLocked() {
		if _, ok := desired[st.node]; !ok {
			e.restoreElementLocked(st)
		}
	}
	var fresh []pendingTarget
	for n, tgt := range desired {
		if st, ok := e.elements[n]; ok {
			st.rulePattern = tgt.rulePattern
			st.selector = tgt.selector
			e.assertElementLocked(st)
		} else {
			fresh = append(fresh, pendingTarget{node: n, rulePattern: tgt.rulePattern, selector: tgt.selector})
		}
	}
	e.syncOverlaysLocked()
	e.scheduleBatchesLocked(fresh)

	e.log.Debugf("reconcile: %d redacted, %d queued, %d overlays", len(e.elements), len(fresh), len(e.overlays))
}

type target struct {
	rulePattern string
	selector    string
}

// desiredElementsLocked evaluates every selector of the working set.
// When several selectors match one node the first match wins. The engine's
// own overlay nodes are never redaction targets.
func (e *Engine) desiredElementsLocked() map[*html.Node]target {
	desired := make(map[*html.Node]target)
	for _, r := range e.working.Rules {
		for _, raw := range r.Selectors {
			sel, err := e.compiledSelectorLocked(raw)
			if err != nil {
				e.metrics.RecordSkippedSelector()
				e.log.Debugf("skipping selector: %v", err)
				continue
			}
			for _, n := range e.doc.Query(sel) {
				if e.doc.HasAttr(n, OverlayAttr) {
					continue
				}
				if _, ok := desired[n]; ok {
					continue
				}
				desired[n] = target{rulePattern: r.URLPattern, selector: raw}
			}
		}
	}
	return desired
}

// compiledSelectorLocked memoizes selector compilation across passes, so
// steady-state reconciles never re-parse. Failures are not cached; every
// pass surfaces the skip.
func (e *Engine) compiledSelectorLocked(raw string) (dom.Selector, error) {
	if sel, ok := e.selectors[raw]; ok {
		return sel, nil
	}
	sel, err := dom.CompileSelector(raw)
	if err != nil {
		return dom.Selector{}, err
	}
	e.selectors[raw] = sel
	return sel, nil
}

func (e *Engine) trackedLocked() []*elementState {
	out := make([]*elementState, 0, len(e.elements))
	for _, st := range e.elements {
		out = append(out, st)
	}
	return out
}

func (e *Engine) restoreAllLocked() {
	for _, st := range e.trackedLocked() {
		e.restoreElementLocked(st)
	}
}

// onMutations is the document observer. It runs without the engine lock;
// self-inflicted records are filtered by marker attributes and the
// expected-filter table, anything else arms the mutation debounce.
func (e *Engine) onMutations(recs []dom.MutationRecord) {
	for _, r := range recs {
		if e.selfRecord(r) {
			continue
		}
		e.sched.noteMutation()
		return
	}
}

func (e *Engine) selfRecord(r dom.MutationRecord) bool {
	switch r.Type {
	case dom.MutationAttributes:
		if r.AttrName == MarkerAttr || r.AttrName == OverlayAttr {
			return true
		}
		if e.doc.HasAttr(r.Target, OverlayAttr) {
			return true
		}
		if r.AttrName == "style" && e.doc.HasAttr(r.Target, MarkerAttr) {
			// A style write on a marked node is ours when the filter
			// matches what we last set. A mismatch is page drift and
			// must trigger a pass to re-assert the blur.
			actual := e.doc.StyleProperty(r.Target, filterProp)
			e.expectMu.Lock()
			expected, ok := e.expected[r.Target]
			e.expectMu.Unlock()
			return ok && actual == expected
		}
		return false
	case dom.MutationChildList:
		if len(r.Added)+len(r.Removed) == 0 {
			return true
		}
		for _, n := range r.Added {
			if !e.doc.HasAttr(n, OverlayAttr) {
				return false
			}
		}
		for _, n := range r.Removed {
			if !e.doc.HasAttr(n, OverlayAttr) {
				return false
			}
		}
		return true
	}
	return false
}

// setFilter records the expectation before writing so the observer sees a
// consistent pair. An empty value removes the property.
func (e *Engine) setFilter(n *html.Node, value string) {
	e.expectMu.Lock()
	e.expected[n] = value
	e.expectMu.Unlock()
	if value == "" {
		e.doc.RemoveStyleProperty(n, filterProp)
	} else {
		e.doc.SetStyleProperty(n, filterProp, value)
	}
}

func (e *Engine) dropExpectation(n *html.Node) {
	e.expectMu.Lock()
	delete(e.expected, n)
	e.expectMu.Unlock()
}

func blurValue(intensity int) string {
	return fmt.Sprintf("blur(%dpx)", intensity)
}
