// Package ticker extracts ticker-like symbols from free-form chat text.
package ticker

import (
	"strings"
	"unicode"
)

const (
	minSymbolLen = 2
	maxSymbolLen = 6
)

// DefaultStopwords are uppercase words that match the symbol shape but are
// ordinary English or generic crypto/chat vocabulary.
var DefaultStopwords = []string{
	// two letters
	"AM", "AN", "AS", "AT", "BE", "BY", "DO", "GO", "HE", "IF", "IN", "IS", "IT", "ME", "MY",
	"NO", "OF", "OK", "ON", "OR", "SO", "TO", "UP", "US", "WE",
	// common words
	"THE", "AND", "FOR", "WITH", "THIS", "THAT", "FROM", "YOUR", "ABOUT", "WHAT", "WHEN", "WHERE",
	"HOW", "WILL", "HAVE", "JUST", "LIKE", "LIKES", "ARE", "BUT", "NOT", "YOU", "ALL", "CAN",
	"WAS", "OUR", "OUT", "GET", "GOT", "HAS", "HIS", "HER", "ITS", "LET", "SAY", "SHE", "TOO",
	"WHO", "WHY", "ANY", "NEW", "SEE", "WAY", "DAY", "NOW", "AGAIN", "THEN", "THAN", "THEM",
	"THEY", "THERE", "HERE", "SOME", "BEEN", "WERE", "INTO", "ONLY", "ALSO", "VERY", "MORE",
	"MOST", "MUCH", "NEXT", "LAST", "TODAY", "WEEK", "STILL", "AFTER", "EVEN", "BACK", "GOOD",
	"GREAT", "ONE", "TWO", "YES", "HIGH", "LOW", "LONG", "SHORT", "BUY", "SELL", "HOLD",
	// chat and crypto terms
	"COIN", "COINS", "TOKEN", "GROUP", "CHANNEL", "CHAT", "ADMIN", "PRICE", "MARKET", "CHART",
	"PUMP", "DUMP", "MOON", "NEWS", "JOIN", "POST", "HTTP", "HTTPS", "WWW", "COM",
}

// Extractor scans text for symbol candidates and filters them against a
// stopword set. The zero value has no stopwords.
type Extractor struct {
	stopwords map[string]struct{}
}

// NewExtractor returns an Extractor that drops the given stopwords.
// Stopwords are compared in uppercase.
func NewExtractor(stopwords []string) *Extractor {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &Extractor{stopwords: set}
}

// WithDefaults returns an Extractor using DefaultStopwords plus extra.
func WithDefaults(extra ...string) *Extractor {
	all := make([]string, 0, len(DefaultStopwords)+len(extra))
	all = append(all, DefaultStopwords...)
	all = append(all, extra...)
	return NewExtractor(all)
}

var defaultExtractor = WithDefaults()

// Extract returns the symbols found in text using DefaultStopwords.
func Extract(text string) []string {
	return defaultExtractor.Extract(text)
}

// Extract uppercases text and returns every word of 2-6 Latin letters that is
// not a stopword, in order of appearance. Duplicates are kept. A leading $ or
// # is never part of a word, so "$btc" and "#BTC" both yield "BTC".
func (e *Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}
	upper := strings.ToUpper(text)

	var symbols []string
	start := -1
	for i, r := range upper {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			symbols = e.appendSymbol(symbols, upper[start:i])
			start = -1
		}
	}
	if start >= 0 {
		symbols = e.appendSymbol(symbols, upper[start:])
	}
	return symbols
}

// IsStopword reports whether word (in any case) is filtered out.
func (e *Extractor) IsStopword(word string) bool {
	_, ok := e.stopwords[strings.ToUpper(word)]
	return ok
}

// appendSymbol appends word when the whole word run is a valid symbol.
// Words touching digits, underscores or non-Latin letters are rejected as a
// whole, matching \b semantics.
func (e *Extractor) appendSymbol(symbols []string, word string) []string {
	if len(word) < minSymbolLen || len(word) > maxSymbolLen {
		return symbols
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'A' || word[i] > 'Z' {
			return symbols
		}
	}
	if _, stop := e.stopwords[word]; stop {
		return symbols
	}
	return append(symbols, word)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
