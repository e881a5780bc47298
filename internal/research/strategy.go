package research

import (
	"fmt"
	"strings"

	"codewiki/internal/domain"
)

// SelectStrategy chooses the approach for the next iteration. The original
// selector always returns Comprehensive ("simplified implementation"); this
// keeps that default but narrows to Focused once confidence is high, per
// the "monotonic in coverage" invariant (spec §4.7 step 1): strategy may
// only narrow, never widen back out, as confidence rises.
func SelectStrategy(previous Strategy, overallConfidence float64, cfg Config) Strategy {
	if previous == StrategyFocused {
		return StrategyFocused
	}
	if overallConfidence >= cfg.ConfidenceThreshold*0.75 {
		return StrategyFocused
	}
	return StrategyComprehensive
}

// DecomposeQuestions splits the current topic/questions into 3-5 focused
// sub-questions, biased toward areas unanswered in prior iterations (spec
// §4.7 step 2).
func DecomposeQuestions(topic string, prior []Iteration) []string {
	if len(prior) == 0 {
		return []string{
			fmt.Sprintf("What is %s and what problem does it solve?", topic),
			fmt.Sprintf("How is %s structured or implemented?", topic),
			fmt.Sprintf("What are the key components or modules involved in %s?", topic),
			fmt.Sprintf("What are common usage patterns or examples of %s?", topic),
		}
	}

	unanswered := prior[len(prior)-1].NewQuestions
	if len(unanswered) == 0 {
		return []string{
			fmt.Sprintf("What edge cases or limitations exist in %s?", topic),
			fmt.Sprintf("How does %s compare to alternative approaches?", topic),
			fmt.Sprintf("What would a deeper investigation of %s reveal?", topic),
		}
	}

	if len(unanswered) > 5 {
		unanswered = unanswered[:5]
	}
	padding := []string{
		fmt.Sprintf("What remains unclear about %s?", topic),
		fmt.Sprintf("What edge cases or limitations exist in %s?", topic),
	}
	for i := 0; len(unanswered) < 3; i++ {
		unanswered = append(unanswered, padding[i])
	}
	return unanswered
}

// ExtractFinding converts one query_repository response into a scored
// Finding. Confidence is a documented heuristic (no ground truth exists to
// calibrate against): 0.4 base plus up to 0.5 from the mean retrieval
// score of the response's sources, clamped to [0,1] — replacing the
// original's hardcoded "Confidence: Some(0.8), TODO: Calculate actual
// confidence" with a response-derived number.
func ExtractFinding(question string, resp domain.RAGResponse) Finding {
	confidence := 0.4
	if len(resp.Sources) > 0 {
		var sum float32
		for _, s := range resp.Sources {
			sum += s.Score
		}
		avg := float64(sum) / float64(len(resp.Sources))
		confidence += 0.5 * avg
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	evidence := make([]string, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		label := s.Chunk.FilePath
		if label == "" {
			label = "chunk:" + shortID(s.Chunk.ID)
		}
		evidence = append(evidence, label)
	}

	var limitations []string
	if len(resp.Sources) == 0 {
		limitations = append(limitations, "no supporting sources were retrieved")
	}

	return Finding{
		Content:     summarize(question, resp.Answer),
		Confidence:  confidence,
		Evidence:    evidence,
		Limitations: limitations,
		SourceRef:   question,
	}
}

// NewQuestionsFrom derives follow-up questions from a low-confidence
// finding, since the response text itself rarely states what it's missing.
func NewQuestionsFrom(question string, f Finding) []string {
	if f.Confidence >= 0.6 {
		return nil
	}
	return []string{fmt.Sprintf("Follow up: clarify or verify - %s", question)}
}

func summarize(question, answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fmt.Sprintf("No answer was found for: %s", question)
	}
	const maxLen = 280
	if len(answer) > maxLen {
		answer = answer[:maxLen] + "..."
	}
	return answer
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
