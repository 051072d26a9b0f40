// Package moderation decides whether user-supplied text is acceptable.
package moderation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed wordlist.yaml
var defaultWordlist []byte

// Wordlist is the on-disk format of a profanity list. With Replace set the
// file's words are used instead of the embedded defaults rather than in
// addition to them.
type Wordlist struct {
	Words   []string `yaml:"words"`
	Allow   []string `yaml:"allow"`
	Replace bool     `yaml:"replace"`
}

var leet = map[rune]rune{
	'@': 'a',
	'4': 'a',
	'3': 'e',
	'1': 'i',
	'!': 'i',
	'0': 'o',
	'$': 's',
	'5': 's',
	'7': 't',
}

// Screen reports whether text contains a listed word or phrase. A Screen is
// immutable after construction and safe for concurrent use.
type Screen struct {
	words   map[string]struct{}
	phrases [][]string
}

// NewScreen builds a screen from words, dropping anything in allow.
func NewScreen(words, allow []string) *Screen {
	allowed := make(map[string]struct{}, len(allow))
	for _, a := range allow {
		allowed[strings.Join(normalizeEntry(a), " ")] = struct{}{}
	}

	s := &Screen{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		parts := normalizeEntry(w)
		if len(parts) == 0 {
			continue
		}
		if _, ok := allowed[strings.Join(parts, " ")]; ok {
			continue
		}
		if len(parts) == 1 {
			s.words[parts[0]] = struct{}{}
		} else {
			s.phrases = append(s.phrases, parts)
		}
	}
	return s
}

// DefaultScreen returns a screen over the embedded word list.
func DefaultScreen() *Screen {
	var wl Wordlist
	if err := yaml.Unmarshal(defaultWordlist, &wl); err != nil {
		panic(fmt.Sprintf("moderation: embedded word list: %v", err))
	}
	return NewScreen(wl.Words, wl.Allow)
}

// LoadScreen returns the default screen when path is empty, otherwise the
// defaults merged with (or replaced by) the YAML list at path.
func LoadScreen(path string) (*Screen, error) {
	var base Wordlist
	if err := yaml.Unmarshal(defaultWordlist, &base); err != nil {
		return nil, fmt.Errorf("embedded word list: %w", err)
	}
	if path == "" {
		return NewScreen(base.Words, base.Allow), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	var custom Wordlist
	if err := yaml.Unmarshal(raw, &custom); err != nil {
		return nil, fmt.Errorf("parse word list %s: %w", path, err)
	}

	words := custom.Words
	if !custom.Replace {
		words = append(append([]string{}, base.Words...), custom.Words...)
	}
	allow := append(append([]string{}, base.Allow...), custom.Allow...)
	return NewScreen(words, allow), nil
}

// ContainsProfanity reports whether any token, or run of consecutive
// tokens, of text is on the list.
func (s *Screen) ContainsProfanity(text string) bool {
	tokens := tokenize(text)
	for i, tok := range tokens {
		for _, v := range tok {
			if _, ok := s.words[v]; ok {
				return true
			}
		}
		for _, phrase := range s.phrases {
			if matchPhrase(tokens[i:], phrase) {
				return true
			}
		}
	}
	return false
}

func matchPhrase(tokens [][]string, phrase []string) bool {
	if len(tokens) < len(phrase) {
		return false
	}
	for i, word := range phrase {
		if !contains(tokens[i], word) {
			return false
		}
	}
	return true
}

func contains(variants []string, word string) bool {
	for _, v := range variants {
		if v == word {
			return true
		}
	}
	return false
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func isLeet(r rune) bool {
	_, ok := leet[r]
	return ok
}

func isCensor(r rune) bool {
	return r == '*' || r == '#'
}

// tokenize splits text into tokens and returns, per token, the distinct
// spellings worth checking: the leet-folded token and the leet-folded token
// with surrounding punctuation trimmed ("damn!" must not become "damni").
func tokenize(text string) [][]string {
	fields := strings.FieldsFunc(fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !isLeet(r) && !isCensor(r)
	})

	out := make([][]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimFunc(f, isCensor) == "" {
			continue
		}
		trimmed := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})

		var variants []string
		for _, cand := range []string{deleet(f), deleet(trimmed)} {
			if cand != "" && !contains(variants, cand) {
				variants = append(variants, cand)
			}
		}
		if len(variants) > 0 {
			out = append(out, variants)
		}
	}
	return out
}

func deleet(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if m, ok := leet[r]; ok {
			r = m
		}
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeEntry(entry string) []string {
	return strings.Fields(fold(entry))
}
