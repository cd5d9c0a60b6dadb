package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ShayCichocki/claimflow/internal/rules"
	"github.com/ShayCichocki/claimflow/pkg/models"
)

var (
	policyPattern   = regexp.MustCompile(`\b[A-Z]{2}-\d{4}-\d{3,}\b`)
	platePattern    = regexp.MustCompile(`\b[A-Z]{2}[- ]?\d{1,2}[- ]?[A-Z]{1,3}[- ]?\d{3,4}\b`)
	propertyPattern = regexp.MustCompile(`\bPROP-[A-Z]{2,}-\d+\b`)
	customerPattern = regexp.MustCompile(`\bCUST-\d{3,}\b`)

	amountPattern = regexp.MustCompile(`(?i)(₹|\brs\.?|\binr)?\s*(\d{1,3}(?:,\d{2,3})+(?:\.\d+)?|\d+(?:\.\d+)?)(?:\s*(k|lakhs?|lacs?|crores?)\b)?(\s*(?:%|(?:percent|years?|yrs?|months?|days?|weeks?|hours?|km|kms|am|pm)\b))?`)
	agePattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(years?|yrs?|months?)\s*old`)

	isoDatePattern   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDatePattern = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})[/.](\d{4})\b`)
	textDatePattern  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*,?\s+(\d{4})\b`)
	relDatePattern   = regexp.MustCompile(`(?i)\b(today|yesterday|last night)\b`)

	wordPattern = regexp.MustCompile(`[a-z0-9]+`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// Normalize maps free text onto a claim type and sub-type using the
// synonym tables. explicit is false when the sub-type is the type's
// default rather than a keyword match. Text that matches several claim
// types equally well yields an empty type.
func Normalize(t *rules.Tables, text string) (ct models.ClaimType, sub models.ClaimSubType, explicit bool) {
	lower := strings.ToLower(text)
	tokens := wordPattern.FindAllString(lower, -1)

	best, bestScore, tie := models.ClaimType(""), 0, false
	for _, candidate := range []models.ClaimType{models.ClaimTypeMotor, models.ClaimTypeHome, models.ClaimTypeHealth} {
		rule, ok := t.ClaimTypes[candidate]
		if !ok {
			continue
		}
		score := 0
		for _, kw := range rule.Keywords {
			if hasWord(lower, tokens, kw) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = candidate, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}

	if bestScore > 0 && !tie {
		sub, explicit = SubType(t, best, text)
		return best, sub, explicit
	}
	if tie {
		return "", "", false
	}

	// No type keyword: fall back to sub-type keywords that only one type uses.
	found := make(map[models.ClaimType]models.ClaimSubType)
	for candidate, rule := range t.ClaimTypes {
		for _, sr := range rule.SubTypes {
			if matchesAny(lower, tokens, sr.Keywords) {
				if _, seen := found[candidate]; !seen {
					found[candidate] = sr.SubType
				}
			}
		}
	}
	if len(found) == 1 {
		for candidate := range found {
			sub, explicit = SubType(t, candidate, text)
			return candidate, sub, explicit
		}
	}
	return "", "", false
}

// SubType picks the sub-type of ct mentioned in text, or the default.
func SubType(t *rules.Tables, ct models.ClaimType, text string) (models.ClaimSubType, bool) {
	rule, ok := t.ClaimTypes[ct]
	if !ok {
		return "", false
	}
	lower := strings.ToLower(text)
	tokens := wordPattern.FindAllString(lower, -1)
	for _, sr := range rule.SubTypes {
		if matchesAny(lower, tokens, sr.Keywords) {
			return sr.SubType, true
		}
	}
	return rule.DefaultSubType, false
}

func matchesAny(lower string, tokens []string, keywords []string) bool {
	for _, kw := range keywords {
		if hasWord(lower, tokens, kw) {
			return true
		}
	}
	return false
}

var inflections = []string{"s", "es", "ed", "d", "ing", "ism", "ised", "ized", "t", "ies"}

// hasWord reports whether kw occurs as a word or phrase. Single words also
// match common inflections; long words match as prefixes.
func hasWord(lower string, tokens []string, kw string) bool {
	kw = strings.ToLower(strings.TrimSpace(kw))
	if kw == "" {
		return false
	}
	if strings.ContainsAny(kw, " -") {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		return re.MatchString(lower)
	}
	for _, tok := range tokens {
		if tok == kw {
			return true
		}
		for _, suf := range inflections {
			if tok == kw+suf {
				return true
			}
		}
		if len(kw) >= 5 && strings.HasPrefix(tok, kw) {
			return true
		}
	}
	return false
}

// Identifier extracts a policy number, vehicle registration or property
// ID, in that order of preference. It returns "" when a kind has more than
// one distinct candidate.
func Identifier(text string) string {
	upper := strings.ToUpper(text)
	for _, re := range []*regexp.Regexp{policyPattern, platePattern, propertyPattern} {
		matches := distinct(re.FindAllString(upper, -1), canonicalID)
		switch len(matches) {
		case 0:
			continue
		case 1:
			return strings.ReplaceAll(matches[0], " ", "-")
		default:
			return ""
		}
	}
	return ""
}

// CustomerID extracts a CUST-nnn customer identifier.
func CustomerID(text string) string {
	matches := distinct(customerPattern.FindAllString(strings.ToUpper(text), -1), strings.ToUpper)
	if len(matches) == 1 {
		return matches[0]
	}
	return ""
}

// CanonicalID strips separators so "KA-01-AB-1234" and "ka01ab1234" compare equal.
func CanonicalID(id string) string {
	return canonicalID(id)
}

func canonicalID(id string) string {
	r := strings.NewReplacer("-", "", " ", "")
	return strings.ToUpper(r.Replace(id))
}

func distinct(values []string, key func(string) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		k := key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// Amount returns the first amount-like number in text, or 0. Numbers that
// belong to identifiers or dates, or that carry a unit such as "years",
// are skipped. A bare number counts only if it is at least 100.
func Amount(text string) float64 {
	cleaned := stripNonAmounts(text)
	for _, m := range amountPattern.FindAllStringSubmatch(cleaned, -1) {
		currency, digits, suffix, unit := m[1], m[2], strings.ToLower(m[3]), m[4]
		if unit != "" {
			continue
		}
		plain := strings.ReplaceAll(digits, ",", "")
		if currency == "" && len(plain) > 9 {
			continue
		}
		v, err := strconv.ParseFloat(plain, 64)
		if err != nil {
			continue
		}
		switch {
		case suffix == "k":
			v *= 1000
		case strings.HasPrefix(suffix, "lakh") || strings.HasPrefix(suffix, "lac"):
			v *= 100000
		case strings.HasPrefix(suffix, "crore"):
			v *= 10000000
		}
		if currency == "" && suffix == "" && !strings.Contains(digits, ",") && v < 100 {
			continue
		}
		if v <= 0 {
			continue
		}
		return v
	}
	return 0
}

func stripNonAmounts(text string) string {
	upper := strings.ToUpper(text)
	out := []byte(text)
	blank := func(re *regexp.Regexp, s string) {
		for _, loc := range re.FindAllStringIndex(s, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				out[i] = ' '
			}
		}
	}
	// ToUpper preserves byte offsets for the ASCII patterns used here.
	if len(upper) == len(text) {
		blank(policyPattern, upper)
		blank(platePattern, upper)
		blank(propertyPattern, upper)
		blank(customerPattern, upper)
		blank(regexp.MustCompile(`\bCLM-[0-9A-Z-]+\b`), upper)
	}
	blank(isoDatePattern, text)
	blank(slashDatePattern, text)
	blank(textDatePattern, text)
	return string(out)
}

// Date extracts an incident date as YYYY-MM-DD relative to now. It returns
// "" when no date or more than one distinct date is present.
func Date(text string, now time.Time) string {
	var found []string
	for _, m := range isoDatePattern.FindAllStringSubmatch(text, -1) {
		if d, ok := mkDate(m[1], m[2], m[3]); ok {
			found = append(found, d)
		}
	}
	for _, m := range slashDatePattern.FindAllStringSubmatch(text, -1) {
		if d, ok := mkDate(m[3], m[2], m[1]); ok {
			found = append(found, d)
		}
	}
	for _, m := range textDatePattern.FindAllStringSubmatch(text, -1) {
		month := monthIndex[strings.ToLower(m[2])[:3]]
		if d, ok := mkDate(m[3], strconv.Itoa(int(month)), m[1]); ok {
			found = append(found, d)
		}
	}
	for _, m := range relDatePattern.FindAllStringSubmatch(text, -1) {
		switch strings.ToLower(m[1]) {
		case "today":
			found = append(found, now.Format("2006-01-02"))
		default:
			found = append(found, now.AddDate(0, 0, -1).Format("2006-01-02"))
		}
	}

	found = distinct(found, func(s string) string { return s })
	if len(found) != 1 {
		return ""
	}
	return found[0]
}

func mkDate(y, m, d string) (string, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// AssetAge extracts "N years old" / "N months old" as years.
func AssetAge(text string) float64 {
	m := agePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "month") {
		v /= 12
	}
	return v
}

// IsGreeting reports whether text is only a greeting.
func IsGreeting(t *rules.Tables, text string) bool {
	cleaned := strings.Trim(strings.ToLower(strings.TrimSpace(text)), "!.?, ")
	for _, g := range t.Intake.Greetings {
		if cleaned == g {
			return true
		}
	}
	return false
}
