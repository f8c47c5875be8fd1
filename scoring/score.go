package scoring

import (
	"math"

	"github.com/AnTengye/contractscore/model"
)

// Score is the confidence score and its per-category breakdown.
type Score struct {
	Total      float64
	Categories []model.CategoryScore
}

// ComputeScore grades data against Rubric. Each category contributes its weight
// scaled by the fraction of its fields that are present, rounded to one
// decimal; Total is the sum of those rounded contributions, so the breakdown
// always adds up to the reported score.
func ComputeScore(data *model.ExtractedData) Score {
	var s Score
	var sum float64
	for _, category := range Rubric {
		present := 0
		for _, field := range category.Fields {
			if field.Check(data) == Present {
				present++
			}
		}
		sub := round1(category.Weight * float64(present) / float64(len(category.Fields)))
		sum += sub
		s.Categories = append(s.Categories, model.CategoryScore{
			Category: category.Name,
			Weight:   category.Weight,
			Present:  present,
			Total:    len(category.Fields),
			Score:    sub,
		})
	}
	s.Total = math.Min(100, math.Max(0, round1(sum)))
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
