// Package extractor turns normalized contract text into structured fields.
//
// Every extractor is a pure function of its input text. When a field has
// several candidate matches, the one that appears first in the document is
// kept and later ones are ignored; contradictory repeated clauses therefore
// resolve to the earliest mention.
package extractor

import (
	"context"
	"fmt"

	"github.com/AnTengye/contractscore/model"
	"golang.org/x/sync/errgroup"
)

// ExtractAll runs the six field extractors concurrently over already
// normalized text. Each extractor writes only its own branch of the result.
// A panicking extractor is reported as an error instead of crashing the caller.
func ExtractAll(ctx context.Context, text string) (model.ExtractedData, error) {
	var data model.ExtractedData

	g, ctx := errgroup.WithContext(ctx)
	run := func(name string, fn func()) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s extractor panicked: %v", name, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}

	run("parties", func() { data.Parties = ExtractParties(text) })
	run("financial", func() { data.FinancialDetails = ExtractFinancialDetails(text) })
	run("payment", func() { data.PaymentStructure = ExtractPaymentStructure(text) })
	run("sla", func() { data.SLATerms = ExtractSLATerms(text) })
	run("revenue", func() { data.RevenueClassification = ExtractRevenueClassification(text) })
	run("account", func() { data.AccountInfo = ExtractAccountInfo(text) })

	if err := g.Wait(); err != nil {
		return model.ExtractedData{}, err
	}
	return data, nil
}
