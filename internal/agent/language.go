package agent

import (
	"strings"
	"unicode"
)

// Language is an ISO 639-1 code, or Unknown when a message gives no reliable signal.
type Language string

const (
	German  Language = "de"
	English Language = "en"
	French  Language = "fr"
	Spanish Language = "es"
	Italian Language = "it"
	// Unknown covers keyword-only messages and languages without a stop word list.
	Unknown Language = "und"
)

var languageNames = map[Language]string{
	German:  "German",
	English: "English",
	French:  "French",
	Spanish: "Spanish",
	Italian: "Italian",
}

// Name returns the English name of l, or "" for Unknown.
func (l Language) Name() string { return languageNames[l] }

// Stop word lists hold no word shared between two of them, so a hit counts for one language only.
var stopwords = map[Language]map[string]struct{}{
	German: set("der", "die", "das", "und", "ist", "ich", "nicht", "ein", "eine", "einen", "mit", "für",
		"auf", "wie", "was", "wann", "wo", "warum", "welche", "welcher", "kann", "habe", "hat", "bei",
		"zu", "von", "den", "dem", "es", "sind", "mein", "meine", "mir", "mich", "du", "dir", "sie",
		"auch", "oder", "wird", "werden", "soll", "sollte", "gibt", "hallo", "danke", "bitte", "gegen",
		"nach", "ab", "läuft"),
	English: set("the", "and", "is", "are", "not", "with", "for", "on", "how", "what", "when",
		"where", "why", "which", "can", "have", "has", "at", "to", "of", "it", "my", "you", "your",
		"does", "should", "there", "about", "hello", "hi", "thanks", "thank", "please", "against",
		"after", "will", "be"),
	French: set("le", "les", "des", "est", "sont", "quels", "quelles", "quel", "quelle", "qui", "pour",
		"avec", "dans", "je", "mon", "mes", "pas", "une", "et", "ce", "cette", "comment",
		"pourquoi", "bonjour", "merci", "vous", "nous", "au", "aux", "sur", "peut", "être", "où"),
	Spanish: set("el", "los", "las", "del", "son", "cuáles", "cuál", "qué", "quién", "para", "yo",
		"mis", "y", "cómo", "porque", "hola", "gracias", "usted", "puedo", "tengo", "sobre", "cuando",
		"dónde", "está", "hay"),
	Italian: set("gli", "della", "delle", "dei", "sono", "quali", "quale", "che", "chi",
		"per", "io", "mio", "mia", "e", "perché", "ciao", "grazie", "posso", "ho", "sul", "nel",
		"degli", "anche"),
}

// letterHints are characters that only one of the languages uses.
var letterHints = map[Language]string{
	German:  "äöüß",
	French:  "çœêâîûë",
	Spanish: "ñ¿¡",
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DetectLanguage scores each language by stop words and distinctive letters. It returns the
// best language only when it strictly outscores every other one, and Unknown otherwise.
func DetectLanguage(text string) Language {
	scores := make(map[Language]int, len(stopwords))
	for _, w := range tokenize(text) {
		for lang, words := range stopwords {
			if _, ok := words[w]; ok {
				scores[lang]++
			}
		}
	}
	lower := strings.ToLower(text)
	for lang, letters := range letterHints {
		if strings.ContainsAny(lower, letters) {
			scores[lang]++
		}
	}

	best, top, tied := Unknown, 0, false
	for lang, n := range scores {
		switch {
		case n > top:
			best, top, tied = lang, n, false
		case n == top && n > 0:
			tied = true
		}
	}
	if top == 0 || tied {
		return Unknown
	}
	return best
}
