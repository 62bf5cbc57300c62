// Package tokenizer turns product text into tokens. Index building and query
// parsing use different rules and both are exported as separate functions:
// IndexTokens strips punctuation (so "t-shirt" becomes "tshirt") while
// QueryTokens keeps hyphenated words whole. A hyphenated word therefore
// never matches across the two paths.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// IndexTokens lowercases text, removes ASCII punctuation and splits on
// whitespace. Stopwords and numbers are kept.
func IndexTokens(text string) []Token {
	text = strings.Map(func(r rune) rune {
		if isASCIIPunct(r) {
			return -1
		}
		return r
	}, strings.ToLower(text))
	words := strings.Fields(text)
	tokens := make([]Token, len(words))
	for i, word := range words {
		tokens[i] = Token{Term: word, Position: i}
	}
	return tokens
}

// Terms returns just the terms of IndexTokens(text).
func Terms(text string) []string {
	tokens := IndexTokens(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

var queryWord = regexp.MustCompile(`[\p{L}\p{N}_]+(?:-[\p{L}\p{N}_]+)*`)

// QueryTokens lowercases text and extracts words, keeping internal hyphens.
// Tokens without a letter, such as "42" or "2-3", are dropped.
func QueryTokens(text string) []string {
	matches := queryWord.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, m := range matches {
		if strings.IndexFunc(m, unicode.IsLetter) >= 0 {
			tokens = append(tokens, m)
		}
	}
	return tokens
}

// Normalize prepares a whole string for exact comparison.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

func isASCIIPunct(r rune) bool {
	return r < unicode.MaxASCII && strings.ContainsRune(punctuation, r)
}
