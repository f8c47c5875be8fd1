package scoring

import (
	"fmt"

	"github.com/AnTengye/contractscore/model"
)

const comprehensiveNote = "Contract appears comprehensive: all key fields were identified"

// AnalyzeGaps reports every rubric field that did not count as present, plus
// one note per category that fell below its threshold and a closing summary.
// Lists are never nil so they serialize as [].
func AnalyzeGaps(data *model.ExtractedData) model.GapAnalysis {
	gaps := model.GapAnalysis{
		MissingFields:    []string{},
		IncompleteFields: []string{},
		Notes:            []string{},
	}

	for _, category := range Rubric {
		present := 0
		for _, field := range category.Fields {
			switch field.Check(data) {
			case Present:
				present++
			case Incomplete:
				gaps.IncompleteFields = append(gaps.IncompleteFields, field.Name)
			default:
				gaps.MissingFields = append(gaps.MissingFields, field.Name)
			}
		}
		if present < category.MinPresent {
			gaps.Notes = append(gaps.Notes, category.Note)
		}
	}

	switch {
	case len(gaps.MissingFields) == 0 && len(gaps.IncompleteFields) == 0:
		gaps.Notes = append(gaps.Notes, comprehensiveNote)
	default:
		if n := len(gaps.MissingFields); n > 0 {
			gaps.Notes = append(gaps.Notes, fmt.Sprintf("Contract is missing %d critical fields", n))
		}
		if n := len(gaps.IncompleteFields); n > 0 {
			gaps.Notes = append(gaps.Notes, fmt.Sprintf("Contract has %d incomplete fields", n))
		}
	}
	return gaps
}
