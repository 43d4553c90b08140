package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/aether/internal/matching"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/shared"
)

// Mission is one ingestion run over the tracks selected when it started.
type Mission struct {
	ID      string
	Source  string
	Started time.Time

	indices []int
	total   int
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	inFlight  atomic.Int64
	complete  atomic.Int64
	noMatch   atomic.Int64
	failed    atomic.Int64
	archived  atomic.Int64
	finalized atomic.Bool

	once   sync.Once
	done   chan struct{}
	report *report.Report
}

func (m *Mission) add(counter *atomic.Int64) {
	if m.finalized.Load() {
		return
	}
	counter.Add(1)
}

// Stats returns a snapshot of the mission counters.
func (m *Mission) Stats() models.MissionStats {
	return models.MissionStats{
		Total:           m.total,
		Complete:        int(m.complete.Load()),
		NoMatch:         int(m.noMatch.Load()),
		Failed:          int(m.failed.Load()),
		AlreadyArchived: int(m.archived.Load()),
	}
}

// Indices returns the track indices taking part in the mission.
func (m *Mission) Indices() []int {
	return append([]int(nil), m.indices...)
}

// Done is closed once the mission has been finalized.
func (m *Mission) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mission is finalized and returns its report.
func (m *Mission) Wait(ctx context.Context) (*report.Report, error) {
	select {
	case <-m.done:
		return m.report, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start begins archiving every selected track with min(concurrency, selected) workers.
//
// It is rejected without any state change while a harvest is running, while another mission is active, or when
// nothing is selected. Matches attached by proactive matching or disambiguation are kept.
func (p *Pipeline) Start(ctx context.Context) (*Mission, error) {
	if p.harvesting.Load() {
		return nil, p.reject(shared.ErrHarvestInProgress)
	}

	p.mu.Lock()
	if p.mission != nil {
		p.mu.Unlock()
		return nil, p.reject(shared.ErrMissionActive)
	}

	var indices []int
	for i, t := range p.tracks {
		if t.Selected {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		p.mu.Unlock()
		return nil, p.reject(shared.ErrEmptySelection)
	}

	mctx, cancel := context.WithCancel(ctx)
	m := &Mission{
		ID:      shared.GenerateID(),
		Source:  p.opts.Source,
		Started: time.Now(),
		indices: indices,
		total:   len(indices),
		parent:  ctx,
		ctx:     mctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.inFlight.Store(int64(len(indices)))
	p.mission = m
	p.mu.Unlock()

	if p.opts.Recorder != nil {
		rec := p.record(m, models.MissionRunning, nil)
		if err := p.opts.Recorder.Begin(ctx, rec); err != nil {
			p.logger.Warn("failed to record mission start", "mission", m.ID, "err", err)
		}
	}

	queue := make(chan int, len(indices))
	for _, i := range indices {
		queue <- i
	}
	close(queue)

	workers := min(p.opts.Concurrency, len(indices))
	p.logger.Info("mission started", "mission", m.ID, "tracks", len(indices), "workers", workers)
	p.emit(missionStartedEvent(m, workers))

	for range workers {
		m.wg.Add(1)
		go p.worker(m, queue)
	}
	return m, nil
}

func (p *Pipeline) reject(err error) error {
	p.logger.Warn("ingestion not started", "err", err)
	p.emit(warningEvent(err))
	return err
}

func (p *Pipeline) worker(m *Mission, queue <-chan int) {
	defer m.wg.Done()

	for index := range queue {
		if m.ctx.Err() != nil {
			return
		}
		p.runUnit(m, index)
	}
}

// runUnit processes one track and releases its in-flight slot. The unit that releases the last slot finalizes
// the mission.
func (p *Pipeline) runUnit(m *Mission, index int) {
	cancelled := false
	defer func() {
		if cancelled {
			return
		}
		if m.inFlight.Add(-1) == 0 {
			p.finalize(m.parent, m, false)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			p.logger.Error("track processing panicked", "track", index, "err", err)
			p.fail(m, index, "panic", err)
		}
	}()

	if err := p.process(m.ctx, m, index); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			cancelled = m.ctx.Err() != nil
			if cancelled {
				return
			}
		}
		p.fail(m, index, "process", err)
	}
}

// process runs Dedup, Resolve, Download and Tag for one track. A returned error is a context error or an
// unexpected failure that has not been counted yet.
func (p *Pipeline) process(ctx context.Context, m *Mission, index int) error {
	p.mu.RLock()
	pending := p.matching[index]
	p.mu.RUnlock()
	if pending != nil {
		select {
		case <-pending:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := p.setStatus(index, models.Archiving, ""); err != nil {
		return err
	}
	track, _ := p.Track(index)
	started := time.Now()
	logger := shared.WithLogger(p.logger, "mission", m.ID, "track", index)

	if dest, ok := p.destinationExists(track); ok {
		p.mu.Lock()
		p.tracks[index].OutputPath = dest
		p.mu.Unlock()
		m.add(&m.archived)
		m.add(&m.complete)
		logger.Info("already archived", "path", dest)
		return p.setStatus(index, models.AlreadyArchived, filepath.Base(dest))
	}

	candidate, err := p.resolve(ctx, m, track)
	if err != nil || candidate == nil {
		return err
	}

	progress := func(downloaded, total int64) {
		p.emit(progressEvent(index, downloaded, total))
	}
	dl, err := p.opts.Download.Download(ctx, track, *candidate, progress)
	if err != nil {
		if ctx.Err() != nil {
			p.opts.Download.Discard(index, *candidate)
			return ctx.Err()
		}
		p.opts.Download.Discard(index, *candidate)
		p.fail(m, index, "download", err)
		return nil
	}

	res, err := p.opts.Tagging.Finalize(ctx, dl.Path, track, *candidate)
	if err != nil {
		p.opts.Download.Discard(index, *candidate)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.fail(m, index, "tag", err)
		return nil
	}
	p.opts.Download.Release(index, *candidate)

	elapsed := time.Since(started)
	p.mu.Lock()
	t := &p.tracks[index]
	t.OutputPath = res.Path
	t.SizeBytes = res.SizeBytes
	t.Elapsed = elapsed
	t.Error = ""
	p.mu.Unlock()

	m.add(&m.complete)
	logger.Info("archived", "path", res.Path, "bytes", res.SizeBytes, "elapsed", elapsed.Round(time.Millisecond), "attempts", dl.Attempts)
	if err := p.setStatus(index, models.Complete, filepath.Base(res.Path)); err != nil {
		return err
	}

	p.mirror(ctx, index, res.Path)
	return nil
}

// resolve returns the candidate to fetch, or nil when the track ended as NO_MATCH.
func (p *Pipeline) resolve(ctx context.Context, m *Mission, track models.Track) (*models.Candidate, error) {
	if c := track.Resolved(); c != nil {
		return c, nil
	}

	p.mu.RLock()
	skipped := p.skipped[track.Index]
	p.mu.RUnlock()
	if skipped {
		m.add(&m.noMatch)
		return nil, p.setStatus(track.Index, models.NoMatch, "skipped")
	}

	res, err := p.resolver.Resolve(ctx, track)
	if err != nil {
		return nil, err
	}

	switch res.State {
	case matching.AutoMatched:
		p.mu.Lock()
		p.tracks[track.Index].Match = res.Candidate
		p.mu.Unlock()
		return res.Candidate, nil
	case matching.UserResolved:
		p.mu.Lock()
		p.tracks[track.Index].Override = res.Candidate
		p.mu.Unlock()
		if err := p.setStatus(track.Index, models.Archiving, res.Candidate.Title); err != nil {
			return nil, err
		}
		return res.Candidate, nil
	}

	m.add(&m.noMatch)
	msg := "no candidates"
	if res.State == matching.UserSkipped {
		msg = "skipped"
	}
	return nil, p.setStatus(track.Index, models.NoMatch, msg)
}

func (p *Pipeline) mirror(ctx context.Context, index int, path string) {
	if p.opts.Mirror == nil {
		return
	}
	if err := p.opts.Mirror.Upload(ctx, path, filepath.Base(path)); err != nil {
		p.logger.Warn("mirror upload failed", "track", index, "path", path, "err", err)
	}
}

// fail marks a track FAILED, counts it once, and writes a failure record.
func (p *Pipeline) fail(m *Mission, index int, phase string, err error) {
	track, _ := p.Track(index)
	if track.Status.Terminal() {
		return
	}
	m.add(&m.failed)

	p.failures.Error("track failed",
		"mission", m.ID,
		"track", index,
		"artist", track.Artist,
		"title", track.Title,
		"phase", phase,
		"err", err.Error(),
	)
	p.logger.Error("track failed", "track", index, "phase", phase, "err", err)

	if track.Status != models.Archiving {
		_ = p.setStatus(index, models.Archiving, "")
	}
	_ = p.setStatus(index, models.Failed, err.Error())
}

// finalize builds and persists the mission report exactly once.
func (p *Pipeline) finalize(ctx context.Context, m *Mission, interrupted bool) {
	m.once.Do(func() {
		m.finalized.Store(true)
		finished := time.Now()
		stats := m.Stats()

		r := report.Build(report.Input{
			MissionID:      m.ID,
			URL:            m.Source,
			Library:        p.opts.Library,
			Engine:         p.opts.Engine,
			Started:        m.Started,
			Finished:       finished,
			Stats:          stats,
			Tracks:         p.missionTracks(m),
			Interrupted:    interrupted,
			PropertyReader: p.opts.PropertyReader,
		})
		m.report = r

		if p.opts.History != nil {
			if err := p.opts.History.Append(r); err != nil {
				p.logger.Error("failed to save mission report", "mission", m.ID, "err", err)
			}
		}
		if p.opts.Recorder != nil {
			status := models.MissionComplete
			if interrupted {
				status = models.MissionInterrupted
			}
			if err := p.opts.Recorder.Finish(ctx, p.record(m, status, &finished)); err != nil {
				p.logger.Warn("failed to record mission finish", "mission", m.ID, "err", err)
			}
		}
		_ = p.checkpoint(ctx, m)

		p.mu.Lock()
		if p.mission == m {
			p.mission = nil
		}
		p.last = m
		p.mu.Unlock()

		p.logger.Info("mission finalized",
			"mission", m.ID,
			"complete", stats.Complete,
			"no_match", stats.NoMatch,
			"failed", stats.Failed,
			"interrupted", interrupted,
		)
		close(m.done)
		if interrupted {
			// Subscribers may already be gone during shutdown
			p.emit(missionCompleteEvent(r))
			return
		}
		p.emitWait(ctx, missionCompleteEvent(r))
	})
}

func (p *Pipeline) record(m *Mission, status string, finished *time.Time) models.MissionRecord {
	return models.MissionRecord{
		ID:         m.ID,
		Source:     m.Source,
		Library:    p.opts.Library,
		Engine:     p.opts.Engine,
		Status:     status,
		Stats:      m.Stats(),
		StartedAt:  m.Started,
		FinishedAt: finished,
	}
}
