package research

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"codewiki/internal/corerr"
	"codewiki/internal/domain"
	"codewiki/internal/llmclient"
	"codewiki/internal/repomanager"
)

// Querier is the subset of Manager the engine needs: query_repository for
// each sub-question (spec §4.7 step 3) and get_repository to validate the
// target is queryable before starting (spec §4.7 "start_research").
type Querier interface {
	QueryRepository(ctx context.Context, id string, query domain.Query) (domain.RAGResponse, error)
	GetRepository(ctx context.Context, id string) (domain.Repository, error)
}

var _ Querier = (*repomanager.Manager)(nil)

// Engine drives the Planning -> (Iterating)* -> Synthesizing ->
// Completed|Cancelled|Failed state machine over one or more sessions (spec
// §4.7).
type Engine struct {
	manager Querier
	history HistoryStore
	llm     llmclient.Provider
	model   string

	mu       sync.Mutex
	sessions map[string]*Context
}

func NewEngine(manager Querier, history HistoryStore, llm llmclient.Provider, model string) *Engine {
	return &Engine{
		manager:  manager,
		history:  history,
		llm:      llm,
		model:    model,
		sessions: make(map[string]*Context),
	}
}

// StartResearch validates the repository, creates a session in Planning,
// and returns its id (spec §4.7 "start_research").
func (e *Engine) StartResearch(ctx context.Context, repositoryID, topic string, cfg Config) (string, error) {
	repo, err := e.manager.GetRepository(ctx, repositoryID)
	if err != nil {
		return "", err
	}
	if repo.Status != domain.StatusCompleted {
		return "", corerr.New(corerr.KindConfig, "target repository is not queryable: "+repositoryID)
	}

	rc := &Context{
		ResearchID:       uuid.NewString(),
		RepositoryID:     repositoryID,
		Topic:            topic,
		Config:           cfg,
		Status:           StatusPlanning,
		Strategy:         StrategyComprehensive,
		CurrentIteration: 0,
		Questions:        DecomposeQuestions(topic, nil),
		StartTime:        time.Now(),
	}

	e.mu.Lock()
	e.sessions[rc.ResearchID] = rc
	e.mu.Unlock()

	if e.history != nil {
		_ = e.history.Save(ctx, HistoryRecord{
			SessionID: rc.ResearchID,
			Topic:     topic,
			Context:   *rc,
			Status:    StatusPlanning,
			StartedAt: rc.StartTime,
		})
	}

	return rc.ResearchID, nil
}

func (e *Engine) get(id string) (*Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rc, ok := e.sessions[id]
	if !ok {
		return nil, corerr.NotFound("research session %s not found", id)
	}
	return rc, nil
}

// RunIteration executes one round: decompose, query, extract findings,
// synthesize partial progress, and decide whether to keep iterating (spec
// §4.7 "research_iteration").
func (e *Engine) RunIteration(ctx context.Context, id string) (Iteration, error) {
	rc, err := e.get(id)
	if err != nil {
		return Iteration{}, err
	}
	if rc.Status == StatusCancelled {
		return Iteration{}, corerr.Cancelled("research session %s was cancelled", id)
	}

	start := time.Now()
	rc.Status = StatusIterating
	rc.Strategy = SelectStrategy(rc.Strategy, overallConfidence(rc), rc.Config)

	questions := DecomposeQuestions(rc.Topic, rc.Iterations)
	maxSources := rc.Config.MaxSourcesPerIteration
	if maxSources <= 0 {
		maxSources = len(questions)
	}
	if maxSources < len(questions) {
		questions = questions[:maxSources]
	}

	var findings []Finding
	var newQuestions []string
	for _, q := range questions {
		resp, err := e.manager.QueryRepository(ctx, rc.RepositoryID, domain.Query{Question: q})
		if err != nil {
			findings = append(findings, Finding{
				Content:     "query failed: " + err.Error(),
				Confidence:  0,
				Limitations: []string{err.Error()},
				SourceRef:   q,
			})
			continue
		}
		f := ExtractFinding(q, resp)
		findings = append(findings, f)
		newQuestions = append(newQuestions, NewQuestionsFrom(q, f)...)
	}

	if rc.Status == StatusCancelled {
		// An in-flight iteration finishes but appends no new findings once
		// cancellation is observed (spec §4.7 "Cancellation").
		return Iteration{}, corerr.Cancelled("research session %s was cancelled mid-iteration", id)
	}

	rc.Findings = append(rc.Findings, findings...)

	iteration := Iteration{
		Ordinal:          rc.CurrentIteration,
		Questions:        questions,
		Findings:         findings,
		NewQuestions:     newQuestions,
		PartialSynthesis: PartialSynthesis(rc.Topic, rc.Findings),
		Duration:         time.Since(start),
	}
	rc.Iterations = append(rc.Iterations, iteration)
	rc.CurrentIteration++
	rc.Questions = newQuestions

	overall := overallConfidence(rc)
	if rc.CurrentIteration >= rc.Config.MaxIterations || overall >= rc.Config.ConfidenceThreshold {
		rc.Status = StatusSynthesizing
	}

	if e.history != nil {
		_ = e.history.Save(ctx, HistoryRecord{
			SessionID: rc.ResearchID,
			Topic:     rc.Topic,
			Context:   *rc,
			Status:    rc.Status,
			StartedAt: rc.StartTime,
		})
	}

	return iteration, nil
}

// Synthesize produces the final report for a session and transitions it to
// Completed (spec §4.7 "synthesize"). It does not check the session's
// current status first.
func (e *Engine) Synthesize(ctx context.Context, id string) (Result, error) {
	rc, err := e.get(id)
	if err != nil {
		return Result{}, err
	}

	synthesizer := NewSynthesizer(rc.Config, e.llm, e.model)
	result := synthesizer.Synthesize(ctx, rc.ResearchID, rc)

	e.mu.Lock()
	rc.Status = StatusCompleted
	e.mu.Unlock()

	if e.history != nil {
		_ = e.history.Save(ctx, HistoryRecord{
			SessionID: rc.ResearchID,
			Topic:     rc.Topic,
			Context:   *rc,
			Status:    StatusCompleted,
			StartedAt: rc.StartTime,
			Summary:   result.Summary,
		})
	}

	return result, nil
}

// CancelResearch transitions a session to Cancelled, preventing further
// iterations from appending findings (spec §4.7 "Cancellation").
func (e *Engine) CancelResearch(ctx context.Context, id string) error {
	rc, err := e.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	rc.Status = StatusCancelled
	e.mu.Unlock()

	if e.history != nil {
		_ = e.history.Save(ctx, HistoryRecord{
			SessionID: rc.ResearchID,
			Topic:     rc.Topic,
			Context:   *rc,
			Status:    StatusCancelled,
			StartedAt: rc.StartTime,
		})
	}
	return nil
}

func (e *Engine) GetSession(id string) (Context, error) {
	rc, err := e.get(id)
	if err != nil {
		return Context{}, err
	}
	return *rc, nil
}

func (e *Engine) ListActive() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id, rc := range e.sessions {
		if rc.Status != StatusCompleted && rc.Status != StatusCancelled && rc.Status != StatusFailed {
			ids = append(ids, id)
		}
	}
	return ids
}

func overallConfidence(rc *Context) float64 {
	return averageConfidence(rc.Findings)
}
