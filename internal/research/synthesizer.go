package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"codewiki/internal/llmclient"
)

// Synthesizer produces the final report, using an LLM when one is available
// and falling back to a template-based report otherwise (spec §4.7
// "synthesize" — "Use an LLM when available; otherwise a template-based
// fallback MUST still produce a complete report").
type Synthesizer struct {
	cfg   Config
	llm   llmclient.Provider
	model string
}

func NewSynthesizer(cfg Config, llm llmclient.Provider, model string) *Synthesizer {
	return &Synthesizer{cfg: cfg, llm: llm, model: model}
}

func (s *Synthesizer) Synthesize(ctx context.Context, sessionID string, rc *Context) Result {
	findings := rc.Findings
	overall := averageConfidence(findings)

	report := s.generateReport(ctx, rc.Topic, findings, rc.Iterations)
	summary := generateSummary(rc.Topic, findings, overall)
	keyFindings := extractKeyFindings(findings, s.cfg.ConfidenceThreshold)
	recommendations := generateRecommendations(rc.Topic, findings)
	further := identifyFurtherResearch(findings, rc.Iterations)
	metrics := calculateMetrics(findings, rc.Iterations, s.cfg.MaxIterations)

	var total time.Duration
	for _, it := range rc.Iterations {
		total += it.Duration
	}

	return Result{
		SessionID:         sessionID,
		Topic:             rc.Topic,
		Config:            s.cfg,
		Iterations:        rc.Iterations,
		FinalReport:       report,
		Summary:           summary,
		KeyFindings:       keyFindings,
		Recommendations:   recommendations,
		FurtherResearch:   further,
		OverallConfidence: overall,
		TotalDuration:     total,
		Metrics:           metrics,
	}
}

// PartialSynthesis produces the per-iteration markdown summary used while a
// session is still Iterating (spec §4.7 step 5).
func PartialSynthesis(topic string, findings []Finding) string {
	if len(findings) == 0 {
		return "No findings available yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research Progress: %s\n\n", topic)
	fmt.Fprintf(&sb, "## Findings\n\n")
	for _, f := range findings {
		fmt.Fprintf(&sb, "- **%s** (Confidence: %.1f%%)\n", f.Content, f.Confidence*100)
		if len(f.Evidence) > 0 {
			fmt.Fprintf(&sb, "  - Evidence: %s\n", strings.Join(f.Evidence, ", "))
		}
		if len(f.Limitations) > 0 {
			fmt.Fprintf(&sb, "  - Limitations: %s\n", strings.Join(f.Limitations, ", "))
		}
	}
	fmt.Fprintf(&sb, "\n## Overall Confidence: %.1f%%\n", averageConfidence(findings)*100)
	return sb.String()
}

func averageConfidence(findings []Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	return sum / float64(len(findings))
}

func (s *Synthesizer) generateReport(ctx context.Context, topic string, findings []Finding, iterations []Iteration) string {
	if s.llm != nil {
		if report, err := s.generateReportWithLLM(ctx, topic, findings, iterations); err == nil {
			return report
		}
	}
	return generateReportTemplate(topic, findings, iterations)
}

func (s *Synthesizer) generateReportWithLLM(ctx context.Context, topic string, findings []Finding, iterations []Iteration) (string, error) {
	findingsSummary := make([]string, 0, len(findings))
	for _, f := range findings {
		findingsSummary = append(findingsSummary, fmt.Sprintf("- %s (Confidence: %.1f%%)", f.Content, f.Confidence*100))
	}

	iterationsSummary := make([]string, 0, len(iterations))
	for i, it := range iterations {
		iterationsSummary = append(iterationsSummary, fmt.Sprintf(
			"Iteration %d: %d questions explored, %d findings discovered",
			i+1, len(it.Questions), len(it.Findings)))
	}

	prompt := fmt.Sprintf(`You are a research analyst tasked with creating a comprehensive research report. Based on the research conducted, generate a well-structured, professional report.

Research Topic: %q

Research Process:
%s

Key Findings:
%s

Structure the report as: Executive Summary, Research Overview and Methodology, Detailed Findings Analysis, Key Insights and Patterns, Conclusions and Implications, Recommendations for Further Research. Format the output in Markdown.`,
		topic, strings.Join(iterationsSummary, "\n"), strings.Join(findingsSummary, "\n"))

	return s.llm.Chat(ctx, []llmclient.Message{
		{Role: "user", Content: prompt},
	}, s.model, 0.3, nil)
}

func generateReportTemplate(topic string, findings []Finding, iterations []Iteration) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Comprehensive Research Report: %s\n\n", topic)

	fmt.Fprintf(&sb, "## Research Overview\n\n")
	fmt.Fprintf(&sb, "This research was conducted over %d iterations, examining %d findings.\n\n",
		len(iterations), len(findings))

	fmt.Fprintf(&sb, "## Methodology\n\n")
	sb.WriteString("This research employed an iterative approach, progressively deepening understanding through:\n")
	sb.WriteString("- Systematic question decomposition\n")
	sb.WriteString("- Multi-source information gathering\n")
	sb.WriteString("- Iterative synthesis and validation\n\n")

	fmt.Fprintf(&sb, "## Research Findings\n\n")
	for i, it := range iterations {
		fmt.Fprintf(&sb, "### Iteration %d Findings\n\n", i+1)
		sb.WriteString(it.PartialSynthesis)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "## Conclusions\n\n")
	sb.WriteString(generateConclusions(findings))

	return sb.String()
}

func generateConclusions(findings []Finding) string {
	confidence := averageConfidence(findings)
	var sb strings.Builder
	switch {
	case confidence > 0.8:
		sb.WriteString("The research provides a comprehensive understanding of the topic with high confidence. ")
	case confidence > 0.6:
		sb.WriteString("The research provides good insights with moderate confidence. ")
	default:
		sb.WriteString("The research provides initial insights but requires further investigation. ")
	}
	fmt.Fprintf(&sb, "Based on %d findings, the key takeaways are documented above and should be considered in context of the identified limitations.", len(findings))
	return sb.String()
}

func generateSummary(topic string, findings []Finding, confidence float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "This research investigated %s. ", topic)
	fmt.Fprintf(&sb, "Based on %d findings from multiple sources, ", len(findings))

	switch {
	case confidence > 0.8:
		sb.WriteString("we have high confidence in our understanding. ")
	case confidence > 0.6:
		sb.WriteString("we have moderate confidence in our understanding. ")
	default:
		sb.WriteString("our understanding is preliminary and requires further investigation. ")
	}

	high := make([]Finding, 0, 3)
	for _, f := range findings {
		if f.Confidence > 0.8 {
			high = append(high, f)
			if len(high) == 3 {
				break
			}
		}
	}
	if len(high) > 0 {
		sb.WriteString("Key insights include: ")
		parts := make([]string, 0, len(high))
		for _, f := range high {
			parts = append(parts, f.Content)
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(".")
	}
	return sb.String()
}

func extractKeyFindings(findings []Finding, threshold float64) []string {
	filtered := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Confidence > threshold {
			filtered = append(filtered, f)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return len(filtered[i].Content) > len(filtered[j].Content)
	})
	if len(filtered) > 5 {
		filtered = filtered[:5]
	}
	out := make([]string, 0, len(filtered))
	for _, f := range filtered {
		out = append(out, f.Content)
	}
	return out
}

func generateRecommendations(topic string, findings []Finding) []string {
	var recs []string
	for _, f := range findings {
		if f.Confidence < 0.5 {
			recs = append(recs, "Further investigation is needed in areas with low confidence")
			break
		}
	}
	if len(findings) < 5 {
		recs = append(recs, "Additional sources should be consulted for comprehensive understanding")
	}
	recs = append(recs, fmt.Sprintf("Consider practical applications of %s in your specific context", topic))
	recs = append(recs, "Validate findings through hands-on experimentation where possible")
	return recs
}

func identifyFurtherResearch(findings []Finding, iterations []Iteration) []string {
	var further []string
	if len(iterations) > 0 {
		last := iterations[len(iterations)-1]
		if len(last.NewQuestions) > 0 {
			further = append(further, "Investigate remaining unanswered questions")
		}
	}
	for _, f := range findings {
		if f.Confidence < 0.6 {
			further = append(further, "Verify: "+f.Content)
		}
	}
	for _, f := range findings {
		if len(f.Limitations) > 0 {
			further = append(further, "Resolve identified limitations and contradictions")
			break
		}
	}
	return further
}

func calculateMetrics(findings []Finding, iterations []Iteration, maxIterations int) Metrics {
	sources := make(map[string]struct{})
	for _, f := range findings {
		sources[f.SourceRef] = struct{}{}
	}

	questionsExplored := 0
	for _, it := range iterations {
		questionsExplored += len(it.Questions)
	}

	avg := averageConfidence(findings)
	coverage := float64(len(findings)) / 10.0
	if coverage > 1 {
		coverage = 1
	}
	depth := 1.0
	if maxIterations > 0 {
		depth = float64(len(iterations)) / float64(maxIterations)
		if depth > 1 {
			depth = 1
		}
	}

	return Metrics{
		SourcesConsulted:   len(sources),
		QuestionsExplored:  questionsExplored,
		FindingsDiscovered: len(findings),
		AverageConfidence:  avg,
		CoverageScore:      coverage,
		DepthScore:         depth,
		CoherenceScore:     avg,
	}
}
