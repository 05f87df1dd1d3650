package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"castforge/internal/archive"
	"castforge/internal/config"
	"castforge/internal/job"
	"castforge/internal/metrics"
	"castforge/internal/persona"
	"castforge/internal/plan"
	"castforge/internal/pricing"
	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
	"castforge/internal/upstream"
)

const moduleName = "orchestrator"

// Request is a job submission.
type Request struct {
	APIKey         string
	Total          int
	PromptTemplate string
	Model          string
	JobID          string
}

// Orchestrator runs generation jobs.
type Orchestrator struct {
	cfg      *config.Config
	store    *job.Store
	invoker  *upstream.Invoker
	personas persona.Generator
	writer   *archive.Writer
	recorder metrics.Recorder
	tracer   *metrics.Tracer
}

// New wires the orchestrator from its collaborators.
func New(
	cfg *config.Config,
	store *job.Store,
	invoker *upstream.Invoker,
	personas persona.Generator,
	writer *archive.Writer,
	recorder metrics.Recorder,
	tracer *metrics.Tracer,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		invoker:  invoker,
		personas: personas,
		writer:   writer,
		recorder: recorder,
		tracer:   tracer,
	}
}

// workItem is one schedulable unit of upstream work: a whole series
// (one call split into its episodes) or a single transcript.
type workItem struct {
	units []plan.GenerationUnit
}

func (w workItem) kind() plan.UnitKind { return w.units[0].Kind }

// groupItems bundles the plan's expanded units into work items: series
// episodes share one item, singles get their own.
func groupItems(units []plan.GenerationUnit) []workItem {
	var items []workItem
	for i := 0; i < len(units); {
		u := units[i]
		if u.Kind == plan.KindSeries {
			end := i + u.TotalEpisodes
			items = append(items, workItem{units: units[i:end]})
			i = end
			continue
		}
		items = append(items, workItem{units: units[i : i+1]})
		i++
	}
	return items
}

// Submit validates the request, builds the plan, registers the job, and
// starts execution. It returns the job and its live event stream; the
// channel is closed after the terminal event.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*job.Job, <-chan Event, error) {
	if err := o.validate(req); err != nil {
		return nil, nil, err
	}
	model := req.Model
	if model == "" {
		model = o.cfg.Upstream.Model
	}

	shape := plan.ShapeFor(req.Total)
	personas, err := o.personas.Generate(ctx, shape, req.APIKey)
	if err != nil {
		return nil, nil, err
	}
	units, err := plan.Build(req.Total, personas)
	if err != nil {
		return nil, nil, err
	}

	j := job.New(req.Total, shape, units, model)
	if req.JobID != "" {
		j.ID = req.JobID
	}
	if err := o.store.Create(ctx, j); err != nil {
		return nil, nil, err
	}

	events := make(chan Event, 64)
	go o.run(j, req, events)
	return j, events, nil
}

func (o *Orchestrator) validate(req Request) error {
	if req.Total < 1 {
		return exception.New(moduleName, "total artifact count must be a positive integer", exception.ErrValidation, false)
	}
	if req.Total > o.cfg.Generation.MaxArtifacts {
		return exception.New(moduleName,
			fmt.Sprintf("total artifact count exceeds the cap of %d", o.cfg.Generation.MaxArtifacts),
			exception.ErrValidation, false)
	}
	if req.PromptTemplate == "" {
		return exception.New(moduleName, "prompt template must not be empty", exception.ErrValidation, false)
	}
	return nil
}

// run executes the job's work items and closes the event stream after
// the terminal event. It owns the job's background context: callers may
// disconnect from the stream without stopping the job.
func (o *Orchestrator) run(j *job.Job, req Request, events chan<- Event) {
	defer close(events)

	ctx := context.Background()
	ctx, finishSpan := o.tracer.StartJobSpan(ctx, j.ID, j.RequestedTotal)
	defer finishSpan()

	o.recorder.RecordJobStatus(string(job.StateRunning))
	o.emit(events, Event{Type: EventStatus, JobID: j.ID,
		Message: fmt.Sprintf("plan ready: %d series, %d singles (%d artifacts)",
			j.Shape.SeriesCount, j.Shape.SingleCount, j.Shape.ArtifactCount())})

	items := groupItems(j.Units)
	sem := make(chan struct{}, o.cfg.Generation.Concurrency)
	var wg sync.WaitGroup
	var errsMu sync.Mutex
	var unitErrs *multierror.Error

	for _, item := range items {
		wg.Add(1)
		go func(item workItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := o.runItem(ctx, j, req, item, events); err != nil {
				errsMu.Lock()
				unitErrs = multierror.Append(unitErrs, err)
				errsMu.Unlock()
			}
		}(item)
	}
	wg.Wait()

	stats := o.finish(ctx, j, events, unitErrs)
	logger.Infof("Job %s finished as %s: %d/%d artifacts, %d failed unit(s), cost $%.4f.",
		j.ID, stats.State, stats.ArtifactsCompleted, j.Shape.ArtifactCount(), stats.UnitsFailed, stats.Cost.Cost.Total)
}

// finish settles the terminal state: completed unless cancelled, final
// stats, and the complete event with the archive handle.
func (o *Orchestrator) finish(ctx context.Context, j *job.Job, events chan<- Event, unitErrs *multierror.Error) job.Stats {
	if !j.Cancelled() {
		if _, err := o.store.Complete(ctx, j.ID); err != nil {
			// A pause racing with the last completion; force through the
			// valid path so the job still terminates.
			logger.Warnf("Job %s: could not mark completed directly: %v", j.ID, err)
			if _, rerr := o.store.Resume(ctx, j.ID); rerr == nil {
				_, _ = o.store.Complete(ctx, j.ID)
			}
		}
	}

	stats, err := o.store.Stats(j.ID)
	if err != nil {
		stats = j.Stats()
	}
	o.recorder.RecordJobStatus(string(stats.State))
	if j.CompletedAt != nil {
		o.recorder.RecordJobDuration(string(stats.State), j.CompletedAt.Sub(j.StartedAt))
	}
	if unitErrs.ErrorOrNil() != nil {
		logger.Warnf("Job %s: %d unit(s) failed: %v", j.ID, len(unitErrs.Errors), unitErrs)
	}

	o.emit(events, Event{Type: EventComplete, JobID: j.ID, Completion: &Completion{
		ArchivePath: fmt.Sprintf("/api/jobs/%s/archive", j.ID),
		Stats:       stats,
	}})
	return stats
}

// runItem executes one work item end to end. Unit-level failures are
// recorded and reported but never abort sibling items.
func (o *Orchestrator) runItem(ctx context.Context, j *job.Job, req Request, item workItem, events chan<- Event) error {
	lead := item.units[0]
	ctx, finishSpan := o.tracer.StartUnitSpan(ctx, j.ID, string(item.kind()), lead.Index)
	defer finishSpan()

	// Checkpoint before any upstream work: a cancelled job never starts a
	// queued item, a paused job parks it.
	if !o.awaitRunnable(j) {
		return nil
	}

	res, err := o.invokeItem(ctx, j, req, item)
	if err != nil {
		o.tracer.RecordError(ctx, err)
		o.reportItemFailure(ctx, j, item, err, events)
		return err
	}

	j.Ledger.Record(j.Model, string(item.kind()), res.InputTokens, res.OutputTokens)

	segments, _ := o.segment(j, item, res.Text, events)
	perArtifact := costShare(j.Model, res, len(segments))

	for i, unit := range item.units {
		title, content := extractTitle(segments[i], unit)
		if err := o.storeArtifact(ctx, j, unit, title, content, res, perArtifact, events); err != nil {
			o.reportUnitFailure(ctx, j, unit, err, events)
		}
	}
	return nil
}

// awaitRunnable blocks while the job is paused, polling at the configured
// interval, and returns false when the job is cancelled.
func (o *Orchestrator) awaitRunnable(j *job.Job) bool {
	poll := time.Duration(o.cfg.Generation.PausePollMs) * time.Millisecond
	for {
		switch j.CurrentState() {
		case job.StateCancelled:
			return false
		case job.StatePaused:
			select {
			case <-j.CancelSignal():
				// Re-check: resume re-arms the signal, so a closed channel
				// here may be stale.
				if j.CurrentState() == job.StateCancelled {
					return false
				}
			case <-time.After(poll):
			}
		default:
			return true
		}
	}
}

// invokeItem performs the item's one upstream call with the kind-specific
// output-token ceiling.
func (o *Orchestrator) invokeItem(ctx context.Context, j *job.Job, req Request, item workItem) (upstream.Result, error) {
	maxTokens := o.cfg.Generation.SingleMaxTokens
	prompt := buildSinglePrompt(req.PromptTemplate, item.units[0])
	if item.kind() == plan.KindSeries {
		maxTokens = o.cfg.Generation.SeriesMaxTokens
		prompt = buildSeriesPrompt(req.PromptTemplate, item.units)
	}
	return o.invoker.Invoke(ctx, upstream.Request{
		Prompt:          prompt,
		Model:           j.Model,
		MaxOutputTokens: maxTokens,
		APIKey:          req.APIKey,
	})
}

// segment splits a series response into its episodes, falling back to an
// even line split when the markers are missing. Singles pass through.
func (o *Orchestrator) segment(j *job.Job, item workItem, text string, events chan<- Event) ([]string, bool) {
	if item.kind() != plan.KindSeries {
		return []string{text}, false
	}
	segments, fellBack := splitEpisodes(text, len(item.units))
	if fellBack {
		o.recorder.RecordSplitFallback()
		logger.Warnf("Job %s: series %s response missing episode markers; split by line count.",
			j.ID, item.units[0].SeriesID)
		o.emit(events, Event{Type: EventStatus, JobID: j.ID,
			Message: fmt.Sprintf("series %s: episode markers missing, split evenly", item.units[0].SeriesID)})
	}
	return segments, fellBack
}

// storeArtifact writes one transcript, records progress, and emits the
// progress event with the running cost totals.
func (o *Orchestrator) storeArtifact(ctx context.Context, j *job.Job, unit plan.GenerationUnit, title, content string, res upstream.Result, perArtifact artifactCost, events chan<- Event) error {
	objName, err := o.writer.WriteTranscript(ctx, j.ID, unit, title, content)
	if err != nil {
		return err
	}

	rec, err := o.store.RecordArtifact(ctx, j.ID, job.ArtifactRecord{
		UnitIndex:    unit.Index,
		Kind:         unit.Kind,
		Title:        title,
		SeriesID:     unit.SeriesID,
		Episode:      unit.Episode,
		Path:         objName,
		InputTokens:  perArtifact.inputTokens,
		OutputTokens: perArtifact.outputTokens,
		Cost:         perArtifact.cost,
	})
	if err != nil {
		return err
	}

	o.recorder.RecordArtifact(string(unit.Kind))
	contextStr := ""
	if unit.Kind == plan.KindSeries {
		contextStr = fmt.Sprintf("series %s episode %d/%d", unit.SeriesID, unit.Episode, unit.TotalEpisodes)
	}
	o.emit(events, Event{Type: EventProgress, JobID: j.ID, Progress: &Progress{
		Current:  rec.Index + 1,
		Total:    j.Shape.ArtifactCount(),
		Filename: objName,
		Context:  contextStr,
		Cost:     j.Ledger.Snapshot(),
	}})
	return nil
}

// reportItemFailure records every unit of a failed item as a unit-level
// failure and emits the error events.
func (o *Orchestrator) reportItemFailure(ctx context.Context, j *job.Job, item workItem, cause error, events chan<- Event) {
	for _, unit := range item.units {
		o.reportUnitFailure(ctx, j, unit, cause, events)
	}
}

func (o *Orchestrator) reportUnitFailure(ctx context.Context, j *job.Job, unit plan.GenerationUnit, cause error, events chan<- Event) {
	o.recorder.RecordUnitFailure(string(unit.Kind))
	if err := o.store.RecordFailure(ctx, j.ID, job.UnitFailure{
		UnitIndex: unit.Index,
		Kind:      unit.Kind,
	}, cause); err != nil {
		logger.Errorf("Job %s: failed to record failure for unit %d: %v", j.ID, unit.Index, err)
	}
	idx := unit.Index
	o.emit(events, Event{Type: EventError, JobID: j.ID, Failure: &Failure{
		Message:   exception.ExtractMessage(cause),
		UnitIndex: &idx,
		SeriesID:  unit.SeriesID,
	}})
}

// emit delivers an event without ever blocking job progress; a consumer
// that stops draining loses events, not the job. The terminal event gets
// a grace period so a live consumer always sees completion.
func (o *Orchestrator) emit(events chan<- Event, e Event) {
	if e.Type == EventComplete {
		select {
		case events <- e:
		case <-time.After(5 * time.Second):
			logger.Warnf("Job %s: stream consumer gone, terminal event dropped.", e.JobID)
		}
		return
	}
	select {
	case events <- e:
	default:
		logger.Debugf("Job %s: dropping %s event, stream backlog full.", e.JobID, e.Type)
	}
}

// artifactCost is the per-artifact slice of an item's call cost.
type artifactCost struct {
	inputTokens  int
	outputTokens int
	cost         float64
}

// costShare divides an item's token usage and cost evenly across its
// artifacts.
func costShare(model string, res upstream.Result, parts int) artifactCost {
	if parts < 1 {
		parts = 1
	}
	callCost := pricing.Cost(model, res.InputTokens, res.OutputTokens)
	return artifactCost{
		inputTokens:  res.InputTokens / parts,
		outputTokens: res.OutputTokens / parts,
		cost:         callCost.Total / float64(parts),
	}
}
