package scoring

import (
	"context"

	"github.com/AnTengye/contractscore/extractor"
	"github.com/AnTengye/contractscore/model"
)

// Evaluation is everything derived from one contract's text.
type Evaluation struct {
	Data  model.ExtractedData
	Score Score
	Gaps  model.GapAnalysis
}

// Evaluate normalizes raw text, runs the field extractors and grades the result.
func Evaluate(ctx context.Context, raw string) (*Evaluation, error) {
	data, err := extractor.ExtractAll(ctx, extractor.Normalize(raw))
	if err != nil {
		return nil, err
	}
	return Grade(&data), nil
}

// Grade scores already extracted data and analyzes its gaps.
func Grade(data *model.ExtractedData) *Evaluation {
	return &Evaluation{
		Data:  *data,
		Score: ComputeScore(data),
		Gaps:  AnalyzeGaps(data),
	}
}
