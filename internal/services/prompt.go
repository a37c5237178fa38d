package services

import (
	"strings"

	"alfredoptarigan/report-evaluator/internal/models"
)

const (
	VectorStoreName = "TNFD Evaluation Store"
	AssistantName   = "TNFD Evaluator"

	// EvaluatorInstructions ask for a bare percentage on the first line and a
	// paragraph explanation after it. ParseEvaluation depends on that layout.
	EvaluatorInstructions = "Strict evaluation based on the provided recommendations criteria. " +
		"The evaluation should be rigorous, ensuring that the report avoids greenwashing " +
		"(superficial or misleading claims about environmental efforts). " +
		"Return only a number out of 100%, with no text, followed by a paragraph-format explanation summary."

	EvaluationRequestMessage = "Please evaluate the uploaded TNFD report."
)

// ParseEvaluation splits the evaluator's reply on the first line break. The
// first line minus its percent sign is the score; the rest is the explanation.
func ParseEvaluation(content string) models.EvaluationResult {
	scoreLine, rest, _ := strings.Cut(content, "\n")

	return models.EvaluationResult{
		Score:       strings.TrimSpace(strings.Replace(scoreLine, "%", "", 1)),
		Explanation: strings.TrimSpace(rest),
	}
}
