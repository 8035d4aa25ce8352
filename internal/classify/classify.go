// Package classify assigns a customer utterance to one of four intent
// categories using lexical signals plus weak hints from the session.
//
// Classification is a pure function and never fails: an utterance with no
// signals at all is TRANSACTIONAL with floor confidence, which defers the
// real decision to the routing layer's fallback path.
package classify

import (
	"strings"
	"unicode"

	"github.com/koopa0/kiosk/internal/session"
)

// Category is the intent bucket an utterance falls into.
type Category string

const (
	// CategoryFAQ covers policy and procedure questions answerable from
	// the knowledge base alone.
	CategoryFAQ Category = "FAQ"
	// CategoryBusinessRule covers conditional eligibility questions
	// ("can I still X given Y") that may trigger a scripted strategy.
	CategoryBusinessRule Category = "BUSINESS_RULE"
	// CategoryTransactional covers requests that map onto storefront
	// operations: searching, ordering, cancelling.
	CategoryTransactional Category = "TRANSACTIONAL"
	// CategoryMixed means signals from more than one category exceeded
	// the threshold simultaneously, with no single category dominant.
	CategoryMixed Category = "MIXED"
)

// categories is the scan order. MIXED is an outcome, not a signal source.
var categories = []Category{CategoryFAQ, CategoryBusinessRule, CategoryTransactional}

// Signal is one piece of evidence: a matched term (or a session hint) and
// the category it argues for.
type Signal struct {
	Term     string
	Category Category
	Weight   float64
}

// Result is the classifier's verdict for a single utterance.
// Confidence is in [0,1]; Signals list the evidence that produced it.
type Result struct {
	Category   Category
	Confidence float64
	Signals    []Signal
}

const (
	wordWeight       = 1.0
	phraseWeight     = 1.5
	slotWeight       = 0.5
	continuityWeight = 0.3

	// mixedThreshold is the per-category score a second category must
	// strictly exceed before the utterance counts as MIXED. A single
	// stray keyword is not enough.
	mixedThreshold = 1.0

	// dominanceRatio decides contested utterances. When two categories
	// both clear mixedThreshold, the stronger one still wins outright
	// if it carries at least this multiple of the runner-up's score.
	// Without this, every eligibility question that mentions "my order"
	// would come out MIXED.
	dominanceRatio = 1.5

	// saturationMass is the total signal weight at which confidence
	// stops being discounted for thin evidence. Roughly one phrase plus
	// one keyword.
	saturationMass = 2.5

	// minConfidence is the floor reported when the classifier is
	// guessing: no signals, or a tie it broke by fiat.
	minConfidence = 0.2

	// followUpMaxTokens bounds how short an utterance must be before
	// the previous turn's intent counts as a continuity hint. A terse
	// follow-up usually stays on the prior topic.
	followUpMaxTokens = 4
)

// Classify assigns utterance to a category given a snapshot of the session.
// It is deterministic, has no side effects, and always returns a valid
// Result.
func Classify(utterance string, snap session.Snapshot) Result {
	norm := normalize(utterance)
	tokens := strings.Fields(norm)

	signals := scanLexicons(" "+norm+" ", tokens)
	signals = append(signals, sessionSignals(snap, len(tokens))...)

	scores := make(map[Category]float64, len(categories))
	for _, sig := range signals {
		scores[sig.Category] += sig.Weight
	}

	var (
		best      Category
		bestScore float64
		tied      bool
		total     float64
		over      []Category
	)
	for _, c := range categories {
		s := scores[c]
		total += s
		if s > mixedThreshold {
			over = append(over, c)
		}
		switch {
		case s > bestScore:
			best, bestScore, tied = c, s, false
		case s > 0 && s == bestScore:
			tied = true
		}
	}

	switch {
	case len(over) > 1:
		top, second := over[0], over[1]
		if scores[second] > scores[top] {
			top, second = second, top
		}
		for _, c := range over[2:] {
			switch {
			case scores[c] > scores[top]:
				top, second = c, top
			case scores[c] > scores[second]:
				second = c
			}
		}
		if scores[top] >= dominanceRatio*scores[second] {
			return Result{
				Category:   top,
				Confidence: confidence(scores[top], total),
				Signals:    signals,
			}
		}
		var overSum float64
		for _, c := range over {
			overSum += scores[c]
		}
		return Result{
			Category:   CategoryMixed,
			Confidence: confidence(overSum, total),
			Signals:    signals,
		}
	case total == 0:
		return Result{
			Category:   CategoryTransactional,
			Confidence: minConfidence,
			Signals:    signals,
		}
	case tied:
		// Ambiguous evidence defaults to TRANSACTIONAL, which can
		// always degrade to "no matching tool found" downstream.
		return Result{
			Category:   CategoryTransactional,
			Confidence: minConfidence,
			Signals:    signals,
		}
	default:
		return Result{
			Category:   best,
			Confidence: confidence(bestScore, total),
			Signals:    signals,
		}
	}
}

// confidence converts a winning score into [minConfidence, 1]. The share of
// total signal mass measures separation from the other categories; the
// saturation term discounts verdicts built on a single thin match.
func confidence(score, total float64) float64 {
	share := score / total
	saturation := total / saturationMass
	if saturation > 1 {
		saturation = 1
	}
	c := share * saturation
	if c < minConfidence {
		return minConfidence
	}
	if c > 1 {
		return 1
	}
	return c
}

// scanLexicons collects keyword and phrase matches. Entries containing a
// space are matched as whole phrases against the padded normalized text;
// single words must match a whole token. A word that already sits inside a
// matched phrase of the same category adds no new evidence, so "my order"
// does not double-count through "order".
func scanLexicons(padded string, tokens []string) []Signal {
	present := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		present[t] = true
	}

	var signals []Signal
	for _, c := range categories {
		var phrases []string
		for _, term := range lexicons[c] {
			if !strings.ContainsRune(term, ' ') {
				continue
			}
			if strings.Contains(padded, " "+term+" ") {
				phrases = append(phrases, term)
				signals = append(signals, Signal{Term: term, Category: c, Weight: phraseWeight})
			}
		}
		for _, term := range lexicons[c] {
			if strings.ContainsRune(term, ' ') || !present[term] {
				continue
			}
			if wordInPhrases(term, phrases) {
				continue
			}
			signals = append(signals, Signal{Term: term, Category: c, Weight: wordWeight})
		}
	}
	return signals
}

func wordInPhrases(word string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(" "+p+" ", " "+word+" ") {
			return true
		}
	}
	return false
}

// sessionSignals derives weak hints from session state. Slots that mark an
// in-flight purchase lean TRANSACTIONAL; a terse follow-up leans toward the
// previous turn's intent.
func sessionSignals(snap session.Snapshot, tokenCount int) []Signal {
	var signals []Signal
	if snap.Slot(session.SlotPurchaseIntent) != "" {
		signals = append(signals, Signal{
			Term:     "slot:" + session.SlotPurchaseIntent,
			Category: CategoryTransactional,
			Weight:   slotWeight,
		})
	}
	if snap.Slot(session.SlotPendingAddress) != "" {
		signals = append(signals, Signal{
			Term:     "slot:" + session.SlotPendingAddress,
			Category: CategoryTransactional,
			Weight:   slotWeight,
		})
	}
	if tokenCount > 0 && tokenCount <= followUpMaxTokens && snap.TurnCount > 0 {
		if prev, ok := knownCategory(snap.LastIntent); ok {
			signals = append(signals, Signal{
				Term:     "last_intent:" + snap.LastIntent,
				Category: prev,
				Weight:   continuityWeight,
			})
		}
	}
	return signals
}

// knownCategory maps a stored intent string back to a signal category.
// MIXED does not count: it is a verdict about an utterance, not a topic a
// follow-up could continue.
func knownCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryFAQ, CategoryBusinessRule, CategoryTransactional:
		return Category(s), true
	}
	return "", false
}

// normalize lowercases the utterance, drops apostrophes and invisible
// format characters, maps remaining punctuation to spaces, and collapses
// whitespace. "What's your return-policy?" becomes
// "whats your return policy".
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			// Dropped so contractions keep matching as one token.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r):
			// Zero-width and combining marks are dropped outright.
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
