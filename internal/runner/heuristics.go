package runner

import (
	"regexp"
	"strings"
)

var (
	searchIntentRe = regexp.MustCompile(`(?i)\b(` +
		`prices?|cost of|stock|shares?|exchange rate|bitcoin|weather|forecast|` +
		`news|headlines?|latest|today|tonight|yesterday|this (?:week|month|year)|` +
		`current(?:ly)?|recent(?:ly)?|right now|score|election|release date|` +
		`who (?:is|was|are|won)|where (?:is|was)|what happened` +
		`)\b`)

	// Context already holding search output.
	searchResultsRe = regexp.MustCompile(`(?i)\[EXTERNAL CONTENT|search results?:`)

	uncertaintyRe = regexp.MustCompile(`(?i)(` +
		`i (?:do not|don'?t) know|i'?m not (?:sure|certain)|i am not (?:sure|certain)|` +
		`i (?:cannot|can'?t|am unable to|'?m unable to) (?:browse|access|search|find|look up|verify)|` +
		`i (?:do not|don'?t) have (?:access|real[- ]time|current|up[- ]to[- ]date|live)|` +
		`as of my (?:last )?(?:knowledge|training)|my knowledge cut-?off|` +
		`no (?:real[- ]time|live) (?:data|information|access)` +
		`)`)

	apologyRe = regexp.MustCompile(`(?i)^\s*(?:sorry|i apologi[sz]e|i'?m sorry|unfortunately)\b`)

	changeVerbRe = regexp.MustCompile(`(?i)\b(` +
		`create|add|write|implement|fix|refactor|rename|update|modify|change|edit|` +
		`delete|remove|replace|generate|scaffold|rewrite|move|convert` +
		`)\b`)

	questionOnlyRe = regexp.MustCompile(`(?i)^\s*(what|why|how|explain|describe|where|who|when|which|is|are|does|do)\b`)
)

// wantsSearch reports whether message asks about prices, news, current
// events or a real-world entity.
func wantsSearch(message string) bool {
	return searchIntentRe.MatchString(message)
}

func hasSearchResults(context string) bool {
	return searchResultsRe.MatchString(context)
}

// looksUncertain reports hedging, "I don't know" style answers and
// answers that are nothing but a short apology.
func looksUncertain(answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	if uncertaintyRe.MatchString(answer) {
		return true
	}
	return apologyRe.MatchString(answer) && len(answer) < 200
}

// wantsChanges reports whether message asks for files to be changed.
func wantsChanges(message string) bool {
	if questionOnlyRe.MatchString(message) {
		return false
	}
	return changeVerbRe.MatchString(message)
}
