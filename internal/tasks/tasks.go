// Package tasks implements the ingestion pipeline: discovery, proactive matching, and the archiving worker pool.
package tasks

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/download"
	"github.com/desertthunder/aether/internal/duration"
	"github.com/desertthunder/aether/internal/harvest"
	"github.com/desertthunder/aether/internal/matching"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/desertthunder/aether/internal/tagging"
	"golang.org/x/time/rate"
)

// DefaultEventBuffer is the capacity of the subscriber channel.
const DefaultEventBuffer = 256

// Checkpointer persists the per-track statuses of a mission. Save is an upsert and may be called repeatedly.
type Checkpointer interface {
	Save(ctx context.Context, missionID string, tracks []models.Track) error
}

// MissionRecorder records mission start and finish rows.
type MissionRecorder interface {
	Begin(ctx context.Context, m models.MissionRecord) error
	Finish(ctx context.Context, m models.MissionRecord) error
}

// Mirror receives a copy of every finalized file.
type Mirror interface {
	Upload(ctx context.Context, localPath, name string) error
}

// Opts configures a [Pipeline].
type Opts struct {
	Searcher      matching.Searcher
	Download      *download.Stage
	Tagging       *tagging.Stage
	Concurrency   int
	SearchTimeout time.Duration
	SearchResults int
	SearchLimiter *rate.Limiter

	Source  string // Playlist URL or file the mission was harvested from
	Library string
	Engine  string

	History        *report.History        // Optional
	PropertyReader tagging.PropertyReader // Optional
	Checkpointer   Checkpointer           // Optional
	Recorder       MissionRecorder        // Optional
	Mirror         Mirror                 // Optional

	Logger      *log.Logger
	FailureLog  *log.Logger // JSON records of failed tracks
	EventBuffer int
}

// Pipeline owns the tracks of one playlist and runs ingestion missions over them.
//
// All track mutation happens inside Pipeline methods under mu; callers read [Pipeline.Snapshot] copies.
type Pipeline struct {
	opts      Opts
	logger    *log.Logger
	failures  *log.Logger
	cache     *matching.SearchCache
	proactive *matching.Resolver
	resolver  *matching.Resolver

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	tracks   []models.Track
	keys     map[string]int
	surfaced map[int][]models.Candidate
	waiting  map[int]chan matching.Decision
	matching map[int]chan struct{}
	skipped  map[int]bool
	mission  *Mission
	last     *Mission

	harvesting atomic.Bool
	matchSem   chan struct{}
	matchWG    sync.WaitGroup
	events     chan Event
	shutdown   sync.Once
}

// NewPipeline creates a [Pipeline], filling unset options with defaults.
func NewPipeline(opts Opts) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = shared.DefaultConcurrency
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.FailureLog == nil {
		opts.FailureLog = shared.NewFailureLogger(nil)
	}
	if opts.Download == nil {
		opts.Download = download.NewStage(download.StageOpts{Logger: opts.Logger})
	}
	if opts.Tagging == nil {
		opts.Tagging = tagging.NewStage(tagging.StageOpts{Dir: opts.Download.Dir(), Format: opts.Download.Format(), Logger: opts.Logger})
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		opts:     opts,
		logger:   opts.Logger,
		failures: opts.FailureLog,
		cache:    matching.NewSearchCache(),
		ctx:      ctx,
		cancel:   cancel,
		keys:     make(map[string]int),
		surfaced: make(map[int][]models.Candidate),
		waiting:  make(map[int]chan matching.Decision),
		matching: make(map[int]chan struct{}),
		skipped:  make(map[int]bool),
		matchSem: make(chan struct{}, opts.Concurrency),
		events:   make(chan Event, opts.EventBuffer),
	}

	resolverOpts := matching.ResolverOpts{
		Searcher: opts.Searcher,
		Cache:    p.cache,
		Limiter:  opts.SearchLimiter,
		Timeout:  opts.SearchTimeout,
		Limit:    opts.SearchResults,
		Logger:   opts.Logger,
	}
	p.proactive = matching.NewResolver(resolverOpts)

	resolverOpts.Disambiguator = p
	p.resolver = matching.NewResolver(resolverOpts)
	return p
}

// Events returns the subscriber channel. It is never closed.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// emit broadcasts ev without blocking; the event is dropped when the subscriber is behind.
func (p *Pipeline) emit(ev Event) {
	select {
	case p.events <- ev:
		// Sent successfully
	default:
		// Channel full, skip this update
	}
}

// emitWait delivers ev unless ctx ends or the pipeline shuts down first.
func (p *Pipeline) emitWait(ctx context.Context, ev Event) bool {
	select {
	case p.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-p.ctx.Done():
		return false
	}
}

// Cache returns the search cache shared by every resolution of this pipeline.
func (p *Pipeline) Cache() *matching.SearchCache {
	return p.cache
}

// Harvesting reports whether a harvest is streaming tracks in.
func (p *Pipeline) Harvesting() bool {
	return p.harvesting.Load()
}

// Harvest streams the listing of source into [Pipeline.Discover] until the harvester returns.
func (p *Pipeline) Harvest(ctx context.Context, h harvest.Harvester, source string) error {
	if !p.harvesting.CompareAndSwap(false, true) {
		return shared.ErrHarvestInProgress
	}

	logger := shared.WithLogger(p.logger, "harvester", h.Name(), "source", source)
	logger.Info("harvest started")

	out := make(chan models.TrackInfo)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- h.Harvest(ctx, source, out)
	}()

	discovered := 0
	for info := range out {
		if _, created := p.Discover(info); created {
			discovered++
		}
	}
	err := <-errc

	p.harvesting.Store(false)
	if err != nil {
		logger.Error("harvest failed", "discovered", discovered, "err", err)
	} else {
		logger.Info("harvest complete", "discovered", discovered)
	}
	p.emit(harvestCompleteEvent(discovered, err))
	return err
}

// Discover adds a harvested track. Duplicates by content key return the existing track and false.
//
// New tracks are selected, have their duration parsed, and are matched proactively in the background.
func (p *Pipeline) Discover(info models.TrackInfo) (models.Track, bool) {
	key := shared.NormalizeTrackKey(info.Title, info.Artist)

	p.mu.Lock()
	if i, ok := p.keys[key]; ok {
		t := p.tracks[i]
		p.mu.Unlock()
		return t, false
	}

	secs, ok := duration.Parse(info.Duration)
	t := models.Track{
		Index:         len(p.tracks),
		Artist:        info.Artist,
		Title:         info.Title,
		Album:         info.Album,
		DurationText:  info.Duration,
		Duration:      secs,
		DurationKnown: ok,
		Status:        models.Discovered,
		Selected:      true,
	}
	p.tracks = append(p.tracks, t)
	p.keys[key] = t.Index

	done := make(chan struct{})
	p.matching[t.Index] = done
	p.matchWG.Add(1)
	p.mu.Unlock()

	p.emit(discoveredEvent(t))
	go p.match(t.Index, done)
	return t, true
}

// match resolves a newly discovered track without blocking on disambiguation.
func (p *Pipeline) match(index int, done chan struct{}) {
	defer p.matchWG.Done()
	defer func() {
		p.mu.Lock()
		delete(p.matching, index)
		p.mu.Unlock()
		close(done)
	}()

	select {
	case p.matchSem <- struct{}{}:
	case <-p.ctx.Done():
		return
	}
	defer func() { <-p.matchSem }()

	track, _ := p.Track(index)
	if _, ok := p.destinationExists(track); ok {
		return
	}
	if err := p.setStatus(index, models.Matching, ""); err != nil {
		return
	}

	res, err := p.proactive.Resolve(p.ctx, track)
	if err != nil {
		_ = p.setStatus(index, models.NoMatch, "matching cancelled")
		return
	}

	switch res.State {
	case matching.AutoMatched:
		p.mu.Lock()
		p.tracks[index].Match = res.Candidate
		p.mu.Unlock()
		_ = p.setStatus(index, models.Queued, res.Candidate.Title)
	case matching.Awaiting:
		p.mu.Lock()
		p.surfaced[index] = res.Candidates
		t := p.tracks[index]
		p.mu.Unlock()
		if p.setStatus(index, models.AwaitingDecision, "") == nil {
			p.emit(decisionEvent(t, res.Candidates))
		}
	default:
		_ = p.setStatus(index, models.NoMatch, "")
	}
}

// Candidates returns the candidates surfaced for a track awaiting a decision.
func (p *Pipeline) Candidates(index int) []models.Candidate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]models.Candidate(nil), p.surfaced[index]...)
}

// Track returns a copy of the track at index.
func (p *Pipeline) Track(index int) (models.Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.tracks) {
		return models.Track{}, false
	}
	return p.tracks[index], true
}

// Snapshot returns a copy of every track in index order.
func (p *Pipeline) Snapshot() []models.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]models.Track(nil), p.tracks...)
}

// Len returns the number of discovered tracks.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// Select toggles whether index takes part in the next mission.
func (p *Pipeline) Select(index int, selected bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.tracks) {
		return fmt.Errorf("%w: %d", shared.ErrUnknownTrack, index)
	}
	p.tracks[index].Selected = selected
	return nil
}

// SelectAll selects every track.
func (p *Pipeline) SelectAll() { p.selectAll(true) }

// SelectNone clears the selection.
func (p *Pipeline) SelectNone() { p.selectAll(false) }

func (p *Pipeline) selectAll(selected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tracks {
		p.tracks[i].Selected = selected
	}
}

// setStatus validates and applies a status transition, then broadcasts it.
func (p *Pipeline) setStatus(index int, to models.Status, msg string) error {
	p.mu.Lock()
	if index < 0 || index >= len(p.tracks) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", shared.ErrUnknownTrack, index)
	}
	t := &p.tracks[index]
	if err := models.Transition(t.Status, to); err != nil {
		p.mu.Unlock()
		p.logger.Warn("rejected status change", "track", index, "err", err)
		return err
	}
	t.Status = to
	if to == models.Failed {
		t.Error = msg
	}
	m := p.mission
	p.mu.Unlock()

	var stats models.MissionStats
	if m != nil {
		stats = m.Stats()
	}
	p.emit(statusEvent(index, to, msg, stats))
	return nil
}

// Decide answers a disambiguation request for index with a chosen candidate or a skip.
//
// A worker blocked on the track resumes with the decision. A track left awaiting by proactive matching is
// queued with the chosen override or marked NO_MATCH on skip.
func (p *Pipeline) Decide(index int, d matching.Decision) error {
	p.mu.Lock()
	if index < 0 || index >= len(p.tracks) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", shared.ErrUnknownTrack, index)
	}

	if ch, ok := p.waiting[index]; ok {
		delete(p.waiting, index)
		p.mu.Unlock()
		ch <- d
		return nil
	}

	if p.tracks[index].Status != models.AwaitingDecision {
		p.mu.Unlock()
		return fmt.Errorf("%w: track %d is %s", shared.ErrNotAwaiting, index, p.tracks[index].Status)
	}
	delete(p.surfaced, index)
	if !d.Skip && d.Candidate != nil {
		chosen := *d.Candidate
		p.tracks[index].Override = &chosen
		delete(p.skipped, index)
	} else {
		p.skipped[index] = true
	}
	p.mu.Unlock()

	if d.Skip || d.Candidate == nil {
		return p.setStatus(index, models.NoMatch, "skipped")
	}
	return p.setStatus(index, models.Queued, d.Candidate.Title)
}

// Await implements [matching.Disambiguator] for workers: it publishes the candidates and blocks on a per-track
// channel until [Pipeline.Decide] answers or ctx ends.
func (p *Pipeline) Await(ctx context.Context, track models.Track, candidates []models.Candidate) (matching.Decision, error) {
	ch := make(chan matching.Decision, 1)

	p.mu.Lock()
	p.waiting[track.Index] = ch
	p.surfaced[track.Index] = candidates
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.waiting[track.Index] == ch {
			delete(p.waiting, track.Index)
		}
		delete(p.surfaced, track.Index)
		p.mu.Unlock()
	}()

	if err := p.setStatus(track.Index, models.AwaitingDecision, ""); err != nil {
		return matching.Decision{}, err
	}
	if !p.emitWait(ctx, decisionEvent(track, candidates)) {
		if err := ctx.Err(); err != nil {
			return matching.Decision{}, err
		}
		return matching.Decision{}, p.ctx.Err()
	}

	select {
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return matching.Decision{}, ctx.Err()
	}
}

// Pending returns the indices of tracks currently awaiting a decision.
func (p *Pipeline) Pending() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []int
	for i, t := range p.tracks {
		if t.Status == models.AwaitingDecision {
			out = append(out, i)
		}
	}
	return out
}

// Mission returns the active mission, or the last finished one, or nil.
func (p *Pipeline) Mission() *Mission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.mission != nil {
		return p.mission
	}
	return p.last
}

// Shutdown cancels any active mission and proactive matching, waits for workers, removes temp files and
// checkpoints every track status of the mission. Safe to call more than once.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	var err error
	p.shutdown.Do(func() {
		p.cancel()

		m := p.Mission()
		if m != nil {
			m.cancel()
			m.wg.Wait()
			p.finalize(ctx, m, true)
		}
		p.matchWG.Wait()

		if removed := p.opts.Download.Cleanup(); removed > 0 {
			p.logger.Info("shutdown removed temp files", "count", removed)
		}
		if m != nil {
			err = p.checkpoint(ctx, m)
		}
	})
	return err
}

func (p *Pipeline) checkpoint(ctx context.Context, m *Mission) error {
	if p.opts.Checkpointer == nil {
		return nil
	}
	tracks := p.missionTracks(m)
	if err := p.opts.Checkpointer.Save(ctx, m.ID, tracks); err != nil {
		p.logger.Error("checkpoint failed", "mission", m.ID, "err", err)
		return fmt.Errorf("failed to checkpoint mission %s: %w", m.ID, err)
	}
	p.logger.Debug("checkpoint saved", "mission", m.ID, "tracks", len(tracks))
	return nil
}

func (p *Pipeline) missionTracks(m *Mission) []models.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Track, 0, len(m.indices))
	for _, i := range m.indices {
		out = append(out, p.tracks[i])
	}
	return out
}

// destinationExists reports whether the library already holds the file a track would be archived to.
func (p *Pipeline) destinationExists(t models.Track) (string, bool) {
	dest := p.opts.Tagging.Destination(t, p.opts.Download.Format())
	info, err := os.Stat(dest)
	return dest, err == nil && !info.IsDir()
}
