package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/AnTengye/contractscore/model"
)

const (
	roleProvider = "service_provider"
	roleCustomer = "customer"

	providerWords = `Service Provider|Provider|Vendor|Consultant|Contractor|Supplier|Seller|Licensor`
	customerWords = `Customer|Client|Buyer|Purchaser|Licensee`

	// partyWindow bounds how far after a role anchor contact details are searched.
	partyWindow = 500
)

var (
	partyLabel = regexp.MustCompile(`(?i)\b(` + providerWords + `|` + customerWords + `)[ \t]*(?:\([^)\n]*\))?[ \t]*(?:Name[ \t]*)?:[ \t]*([^\n,;]+)`)
	// between Acme Corp, a Delaware corporation ("Provider") and Globex Inc. ("Customer")
	partyRecital = regexp.MustCompile(`(?i)\b(?:between|and)\s+([^,(\n]+?)\s*(?:,[^()\n]*?)?\(\s*(?:the\s+)?"?(` + providerWords + `|` + customerWords + `)"?\s*\)`)
	roleAnchor   = regexp.MustCompile(`(?i)\b(?:` + providerWords + `|` + customerWords + `)\b`)
	providerRole = regexp.MustCompile(`(?i)^(?:` + providerWords + `)$`)

	addressLabel  = regexp.MustCompile(`(?i)\bAddress\s*:\s*([^\n]+)`)
	addressStreet = regexp.MustCompile(`(?i)\b(\d{1,6}\s+(?:[A-Za-z0-9.'\-]+\s+){1,5}(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd|Way|Place|Pl|Court|Ct|Parkway|Pkwy)\b\.?[^\n]*)`)
	taxIDPattern  = regexp.MustCompile(`(?i)\b(?:Tax ID|Tax Identification Number|Federal EIN|EIN|VAT (?:No\.?|Number|ID))\s*[:#]?\s*([A-Z0-9][A-Z0-9\-]{4,20})`)

	representativeInline = regexp.MustCompile(`(?im)\b(?:Authorized Representative|Authorized Signatory|Signatory|Represented by|Signed by)\s*:\s*([A-Z][A-Za-z.'\- ]{1,60}?)\s*,\s*([A-Za-z][A-Za-z&/.'\- ]{1,60}?)[ \t]*(?:\(([^)\n]+)\))?[ \t]*$`)
	representativePair   = regexp.MustCompile(`(?im)^(?:Name|By)\s*:\s*([A-Z][A-Za-z.'\- ]{1,60}?)\s*\nTitle\s*:\s*([^\n]{2,60}?)\s*$`)
)

type partyCandidate struct {
	role  string
	name  string
	start int
	end   int
}

// ExtractParties recovers the service provider and the customer.
func ExtractParties(text string) *model.Parties {
	if text == "" {
		return nil
	}

	candidates := partyCandidates(text)
	parties := &model.Parties{
		ServiceProvider: buildParty(text, candidates, roleProvider),
		Customer:        buildParty(text, candidates, roleCustomer),
	}

	for _, rep := range representatives(text) {
		party := parties.ServiceProvider
		if rep.role == roleCustomer {
			party = parties.Customer
		}
		if party != nil {
			party.AuthorizedRepresentatives = append(party.AuthorizedRepresentatives, rep.Representative)
		}
	}

	if parties.ServiceProvider == nil && parties.Customer == nil {
		return nil
	}
	return parties
}

func partyCandidates(text string) []partyCandidate {
	var out []partyCandidate
	for _, re := range []*regexp.Regexp{partyLabel, partyRecital} {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			groups := submatches(text, loc)
			role, name := groups[1], groups[2]
			if re == partyRecital {
				role, name = groups[2], groups[1]
			}
			name = cleanPartyName(name)
			if name == "" {
				continue
			}
			out = append(out, partyCandidate{role: normalizeRole(role), name: name, start: loc[0], end: loc[1]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func buildParty(text string, candidates []partyCandidate, role string) *model.PartyInfo {
	var party *model.PartyInfo
	for _, c := range candidates {
		if c.role != role {
			continue
		}
		if party == nil {
			name := c.name
			party = &model.PartyInfo{Name: &name}
		}

		window := text[c.end:partyWindowEnd(text, c.end)]
		if party.Email == nil {
			party.Email = strPtr(emailPattern.FindString(window))
		}
		if party.Phone == nil {
			party.Phone = strPtr(phonePattern.FindString(window))
		}
		if party.Address == nil {
			party.Address = firstValue(window, addressLabel, addressStreet)
		}
		if party.TaxID == nil {
			party.TaxID = firstValue(window, taxIDPattern)
		}
	}
	return party
}

// partyWindowEnd stops at the next blank line or the next role anchor,
// whichever comes first.
func partyWindowEnd(text string, from int) int {
	end := paragraphEnd(text, from, partyWindow)
	if loc := roleAnchor.FindStringIndex(text[from:end]); loc != nil {
		return from + loc[0]
	}
	return end
}

type ownedRepresentative struct {
	model.Representative
	role string
}

// representatives collects signatory rows in document order and assigns each
// one to the role named most recently before it. Rows with no preceding role
// are dropped.
func representatives(text string) []ownedRepresentative {
	type found struct {
		at  int
		rep model.Representative
	}
	var rows []found
	for _, loc := range representativeInline.FindAllStringSubmatchIndex(text, -1) {
		g := submatches(text, loc)
		rows = append(rows, found{at: loc[0], rep: model.Representative{
			Name: cleanValue(g[1]), Title: cleanValue(g[2]), Contact: strPtr(g[3]),
		}})
	}
	for _, loc := range representativePair.FindAllStringSubmatchIndex(text, -1) {
		g := submatches(text, loc)
		rows = append(rows, found{at: loc[0], rep: model.Representative{
			Name: cleanValue(g[1]), Title: cleanValue(g[2]),
		}})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at < rows[j].at })

	anchors := roleAnchor.FindAllStringIndex(text, -1)
	var out []ownedRepresentative
	for _, row := range rows {
		if row.rep.Name == "" || row.rep.Title == "" {
			continue
		}
		role := ""
		for _, a := range anchors {
			if a[0] >= row.at {
				break
			}
			role = normalizeRole(text[a[0]:a[1]])
		}
		if role == "" {
			continue
		}
		out = append(out, ownedRepresentative{Representative: row.rep, role: role})
	}
	return out
}

func normalizeRole(word string) string {
	if providerRole.MatchString(strings.TrimSpace(word)) {
		return roleProvider
	}
	return roleCustomer
}

func cleanPartyName(raw string) string {
	name := raw
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	name = strings.Trim(strings.TrimSpace(name), " ,;:\"'")
	if len(name) < 2 || len(name) > 120 || strings.Contains(name, "@") {
		return ""
	}
	if !strings.ContainsFunc(name, unicode.IsLetter) {
		return ""
	}
	return name
}
