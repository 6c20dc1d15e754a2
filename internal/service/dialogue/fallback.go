package dialogue

// FallbackReason says why a turn got fallback wording instead of a crafted
// answer. The three cases are behaviorally identical to the caller and only
// differ in wording and log detail.
type FallbackReason string

const (
	FallbackLowConfidence  FallbackReason = "low_confidence"
	FallbackEmptyResult    FallbackReason = "empty_result"
	FallbackCatalogFailure FallbackReason = "catalog_failure"
)

// fallbackPools holds the canned wording per reason. Distinct pools make it
// possible to tell from a transcript which branch fired.
var fallbackPools = map[FallbackReason][]string{
	FallbackLowConfidence: {
		"Sorry, I didn't quite catch that. Could you rephrase it?",
		"Hmm, I'm not sure what you're after. Try asking for a genre, like a thriller or a comedy.",
		"I didn't understand that one. Ask me for movie or series recommendations!",
	},
	FallbackEmptyResult: {
		"I came up empty for that category, sorry. Want to try another genre?",
		"Nothing good turned up there. Maybe a different genre?",
		"I couldn't find anything worth recommending for that. Try something else?",
	},
	FallbackCatalogFailure: {
		"My movie catalog isn't answering right now. Please try again in a moment.",
		"I can't reach the catalog at the moment, sorry. Give it another try shortly.",
		"Something went wrong fetching recommendations. Please try again soon.",
	},
}

// pickFallback selects one phrasing from the reason's pool using the
// injected RNG so tests can pin the output.
func (s *Service) pickFallback(reason FallbackReason) string {
	pool := fallbackPools[reason]
	if len(pool) == 0 {
		pool = fallbackPools[FallbackLowConfidence]
	}

	s.rngMu.Lock()
	idx := s.rng.Intn(len(pool))
	s.rngMu.Unlock()
	return pool[idx]
}
