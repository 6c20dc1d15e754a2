package nlu

import (
	"strings"
	"unicode"
)

// stopwords are filler terms that carry no intent signal. The list is
// deliberately small; aggressive filtering hurts short utterances.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
	"i": {}, "me": {}, "my": {}, "you": {}, "your": {},
	"to": {}, "for": {}, "of": {}, "in": {}, "on": {}, "at": {},
	"is": {}, "are": {}, "am": {}, "be": {},
	"it": {}, "do": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "would": {}, "will": {},
	"please": {}, "d": {}, "s": {}, "ll": {}, "m": {},
}

// Tokenize lowercases, splits on non-alphanumeric runes, drops stopwords and
// applies a light suffix strip so "thrillers" and "thriller" train the same
// term. It is intentionally not a real stemmer.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, ok := stopwords[field]; ok {
			continue
		}
		token := stripSuffix(field)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func stripSuffix(token string) string {
	switch {
	case strings.HasSuffix(token, "ies") && len(token) > 4:
		return token[:len(token)-3] + "y"
	case strings.HasSuffix(token, "ing") && len(token) > 5:
		return token[:len(token)-3]
	case strings.HasSuffix(token, "ed") && len(token) > 5:
		return token[:len(token)-2]
	case strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") && len(token) > 3:
		return token[:len(token)-1]
	}
	return token
}
