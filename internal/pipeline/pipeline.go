// Package pipeline declares the editorial stage sequence and drives article
// records through it with a pool of workers. The sequence is linear with
// early-exit gates after dedup, editorial triage, and adjudication.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"newsforge/internal/assemble"
	"newsforge/internal/config"
	"newsforge/internal/core"
	"newsforge/internal/dedup"
	"newsforge/internal/embedding"
	"newsforge/internal/llm"
	"newsforge/internal/logger"
	"newsforge/internal/media"
	"newsforge/internal/publish"
	"newsforge/internal/render"
	"newsforge/internal/records"
	"newsforge/internal/social"
	"newsforge/internal/stages"
	"newsforge/internal/tts"
	"newsforge/internal/writer"
)

// stageTimeout bounds one stage execution. Generous because a stage may
// include LLM retries or a TTS poll loop.
const stageTimeout = 10 * time.Minute

// Stage is one named step of the sequence.
type Stage struct {
	Name string
	Run  func(ctx context.Context, rec *core.ArticleRecord) error
	// Fallback stages get conservative default blocks on failure instead of
	// aborting the record.
	Fallback bool
	// Gate inspects the record after the stage and may stop the traversal,
	// optionally with a terminal status.
	Gate func(rec *core.ArticleRecord) (stop bool, terminal string)
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Config    *config.Config
	Records   *records.Store
	Dedup     *dedup.Store
	Embedder  embedding.Embedder
	Analyzer  *stages.Analyzer
	Writer    *writer.Writer
	Media     *media.Integrator
	Publisher *publish.Publisher
	TTS       *tts.Manager
	Social    *social.Poster
}

// Pipeline drives records through the stage sequence.
type Pipeline struct {
	deps   Deps
	stages []Stage
}

// New assembles the stage sequence from its collaborators.
func New(deps Deps) *Pipeline {
	p := &Pipeline{deps: deps}
	cfg := deps.Config

	p.stages = []Stage{
		{
			Name: "dedup",
			Run:  p.runDedup,
			Gate: func(rec *core.ArticleRecord) (bool, string) {
				if rec.IsDuplicate {
					return true, core.TerminalDuplicate
				}
				return false, ""
			},
		},
		{
			Name:     "editorial_prime",
			Run:      deps.Analyzer.EditorialPrime,
			Fallback: true,
			Gate: func(rec *core.ArticleRecord) (bool, string) {
				if prime := rec.EditorialPrimeAssessment; prime != nil &&
					prime.PreliminaryImportanceLevel == "Boring" && !prime.CriticalOverrideTriggered {
					return true, core.TerminalRejectedBoring
				}
				return false, ""
			},
		},
		{Name: "novelty", Run: deps.Analyzer.Novelty, Fallback: true},
		{Name: "impact_scope", Run: deps.Analyzer.ImpactScope, Fallback: true},
		{Name: "hype_detector", Run: deps.Analyzer.HypeDetector, Fallback: true},
		{Name: "sophistication_stylist", Run: deps.Analyzer.SophisticationStylist, Fallback: true},
		{Name: "corroboration_cognito", Run: deps.Analyzer.CorroborationCognito, Fallback: true},
		{
			Name:     "adjudicator_prime",
			Run:      deps.Analyzer.AdjudicatorPrime,
			Fallback: true,
			Gate: func(rec *core.ArticleRecord) (bool, string) {
				adj := rec.FinalAdjudication
				if adj == nil {
					return true, ""
				}
				switch adj.FinalPublicationDecision {
				case core.DecisionReject:
					return true, core.TerminalRejectedAdjudicator
				case core.DecisionFlagForReview:
					// Parked for the review tool; no terminal status.
					return true, ""
				}
				return false, ""
			},
		},
		{Name: "keyword_intelligence", Run: deps.Analyzer.KeywordIntelligence, Fallback: true},
		{Name: "title", Run: deps.Analyzer.Title, Fallback: true},
		{Name: "description", Run: deps.Analyzer.Description, Fallback: true},
		{Name: "outline", Run: deps.Writer.Outline},
		{Name: "section_writer", Run: deps.Writer.WriteSections},
		{Name: "content_assembler", Run: func(_ context.Context, rec *core.ArticleRecord) error {
			return assemble.Assemble(rec)
		}},
		{Name: "image_integration", Run: func(_ context.Context, rec *core.ArticleRecord) error {
			return deps.Media.Integrate(rec)
		}},
		{Name: "json_ld", Run: func(_ context.Context, rec *core.ArticleRecord) error {
			return deps.Publisher.JSONLD(rec)
		}},
	}

	if cfg.TTS.Enabled && deps.TTS != nil {
		p.stages = append(p.stages, Stage{Name: "tts", Run: deps.TTS.Process})
	}

	p.stages = append(p.stages, Stage{Name: "publish", Run: func(_ context.Context, rec *core.ArticleRecord) error {
		if err := deps.Publisher.Publish(rec); err != nil {
			return err
		}
		// The home page trails the index; a render failure is not grounds to
		// unpublish the article.
		if err := render.HomePage(cfg, deps.Publisher.Index()); err != nil {
			logger.Warn("Home page regeneration failed", "article_id", rec.ID, "error", err)
		}
		return nil
	}})

	if deps.Social != nil {
		p.stages = append(p.stages, Stage{Name: "social", Run: deps.Social.Announce})
	}

	return p
}

// StageNames returns the configured sequence, for logging and tooling.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run drives the given record IDs through the sequence with the configured
// worker pool. Each worker owns one record end-to-end; there is no concurrent
// writer to a single record.
func (p *Pipeline) Run(ctx context.Context, ids []string) error {
	workers := p.deps.Config.App.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(ids) {
		workers = len(ids)
	}
	if len(ids) == 0 {
		return nil
	}

	queue := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range queue {
				if err := p.ProcessOne(ctx, id); err != nil {
					logger.Error("Record traversal failed", err, "article_id", id)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}

	for _, id := range ids {
		select {
		case queue <- id:
		case <-ctx.Done():
			close(queue)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(queue)
	wg.Wait()
	return firstErr
}

// ProcessOne loads a record and executes the full stage sequence for it,
// saving after every stage. Records already carrying a terminal status are
// skipped.
func (p *Pipeline) ProcessOne(ctx context.Context, id string) error {
	rec, err := p.deps.Records.Load(id)
	if err != nil {
		return fmt.Errorf("loading record %s: %w", id, err)
	}
	if rec.TerminalStatus != "" {
		logger.Debug("Skipping terminal record", "article_id", id, "terminal", rec.TerminalStatus)
		return nil
	}

	if budget := p.deps.Config.App.RecordBudget; budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	logger.Info("Processing record", "article_id", id)

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			p.save(rec)
			return fmt.Errorf("record budget exhausted at stage %s: %w", stage.Name, err)
		}

		// A stage that already succeeded on a previous traversal is not
		// re-executed; a resumed record picks up where it stopped. Gates are
		// still evaluated so parked records stay parked until the record
		// changes.
		if rec.StageStatus(stage.Name) != core.StatusSuccess {
			p.runStage(ctx, stage, rec)
			p.save(rec)
		}

		if stage.Gate != nil {
			if stop, terminal := stage.Gate(rec); stop {
				if terminal != "" {
					rec.TerminalStatus = terminal
					p.save(rec)
				}
				logger.Info("Traversal stopped at gate", "article_id", id,
					"stage", stage.Name, "terminal", terminal)
				return nil
			}
		}
	}

	return nil
}

// runStage executes one stage with a timeout and panic recovery, translating
// the outcome into the stage's status key. Stages report SUCCESS themselves;
// the runner fills in the failure statuses and fallback blocks.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, rec *core.ArticleRecord) {
	stageCtx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("stage %s panicked: %v", stage.Name, r)
			}
		}()
		return stage.Run(stageCtx, rec)
	}()

	if err == nil {
		return
	}

	logger.Warn("Stage failed", "article_id", rec.ID, "stage", stage.Name,
		"kind", llmKindLabel(err), "error", err)

	if rec.StageStatus(stage.Name) == "" {
		switch {
		case errors.Is(err, stages.ErrInsufficientInput):
			rec.SetStageStatus(stage.Name, core.StatusSkippedInsufficient)
		case stage.Fallback:
			rec.SetStageStatus(stage.Name, core.StatusFailedWithFallback)
		default:
			rec.SetStageStatus(stage.Name, core.StatusFailedLLMCall)
		}
	}
	if stage.Fallback {
		stages.ApplyFallback(stage.Name, rec)
	}
}

// runDedup classifies the record against history and projects the verdict
// onto the record.
func (p *Pipeline) runDedup(ctx context.Context, rec *core.ArticleRecord) error {
	cfg := p.deps.Config
	opts := dedup.Options{
		ThresholdDuplicate:     cfg.Dedup.ThresholdDuplicate,
		ThresholdNearDuplicate: cfg.Dedup.ThresholdNearDuplicate,
		MinTextLength:          cfg.Dedup.MinTextLength,
		MaxTextSnippet:         cfg.Dedup.MaxTextSnippet,
	}

	verdict, err := p.deps.Dedup.Classify(ctx, rec, p.deps.Embedder, opts)
	if verdict.Status != "" {
		rec.SetStageStatus("dedup", verdict.Status)
	}
	if err != nil {
		// Embedding failure: treat the record as unique and move on rather
		// than blocking the traversal.
		return nil
	}

	rec.IsDuplicate = verdict.Classification == dedup.ClassDuplicate
	rec.HighestSimilarArticleID = verdict.HighestID
	rec.SimilarityScoreToHighest = verdict.HighestScore
	rec.NearDuplicatesFound = verdict.NearDuplicates
	return nil
}

func (p *Pipeline) save(rec *core.ArticleRecord) {
	if err := p.deps.Records.Save(rec); err != nil {
		logger.Error("Failed to save record", err, "article_id", rec.ID)
	}
}

// PendingIDs lists record IDs that are still in flight (no terminal status).
func (p *Pipeline) PendingIDs() ([]string, error) {
	ids, err := p.deps.Records.ListIDs()
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, id := range ids {
		rec, err := p.deps.Records.Load(id)
		if err != nil {
			logger.Warn("Skipping unreadable record", "article_id", id, "error", err)
			continue
		}
		if rec.TerminalStatus == "" {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

// llmKindLabel renders the gateway failure kind for logs; non-gateway errors
// have no kind.
func llmKindLabel(err error) string {
	var ge *llm.Error
	if errors.As(err, &ge) {
		return string(ge.Kind)
	}
	return ""
}
