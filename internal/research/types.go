// Package research implements the Research Engine (C11): an iteration-driven
// planner that decomposes a topic into sub-questions, queries the
// Repository Manager for each, accumulates findings, and synthesizes a
// final report (spec §4.7).
package research

import "time"

// Status is the research session lifecycle state (spec §4.7 "State machine").
type Status string

const (
	StatusPlanning     Status = "Planning"
	StatusIterating    Status = "Iterating"
	StatusSynthesizing Status = "Synthesizing"
	StatusCompleted    Status = "Completed"
	StatusCancelled    Status = "Cancelled"
	StatusFailed       Status = "Failed"
)

// Strategy selects how sub-questions are decomposed and prioritized.
// Comprehensive is the default (spec §4.7 step 1); the original
// implementation keeps this selection simple and adapts by staying put
// unless confidence pushes toward narrowing (spec: "monotonic in coverage").
type Strategy string

const (
	StrategyComprehensive Strategy = "Comprehensive"
	StrategyFocused       Strategy = "Focused"
	StrategyExploratory   Strategy = "Exploratory"
)

// Config bounds one research session (spec §4.7, mirrors config.ResearchConfig).
type Config struct {
	MaxIterations          int
	ConfidenceThreshold    float64
	MaxSourcesPerIteration int
}

// Finding is one piece of extracted, confidence-scored evidence (spec §3
// "Research Finding").
type Finding struct {
	Content     string
	Confidence  float64
	Evidence    []string
	Limitations []string
	SourceRef   string
}

// Iteration is one completed round of research (spec §3 "Research Iteration").
type Iteration struct {
	Ordinal         int
	Questions       []string
	Findings        []Finding
	NewQuestions    []string
	PartialSynthesis string
	Duration        time.Duration
}

// Context is the live state of one research session (spec §3 "Research Context").
type Context struct {
	ResearchID      string
	RepositoryID    string
	Topic           string
	Config          Config
	Status          Status
	Strategy        Strategy
	CurrentIteration int
	Questions       []string
	Findings        []Finding
	Iterations      []Iteration
	StartTime       time.Time
}

// Metrics summarizes research quality (spec §4.7 "synthesize" metrics block).
type Metrics struct {
	SourcesConsulted   int
	QuestionsExplored  int
	FindingsDiscovered int
	AverageConfidence  float64
	CoverageScore      float64
	DepthScore         float64
	CoherenceScore     float64
}

// Result is the final synthesized report (spec §3 "Research Result").
type Result struct {
	SessionID         string
	Topic             string
	Config            Config
	Iterations        []Iteration
	FinalReport       string
	Summary           string
	KeyFindings       []string
	Recommendations   []string
	FurtherResearch   []string
	OverallConfidence float64
	TotalDuration     time.Duration
	Metrics           Metrics
}

// ProgressEvent is emitted as the state machine advances (spec §4.7
// "ResearchStarted", "ResearchProgress").
type ProgressEvent struct {
	ResearchID string
	Stage      string
	Progress   float64
	Message    string
}
