package cluster

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

const minWordLength = 3

// vector is a sparse term-weight map for one headline.
type vector map[string]float64

// vectorize computes TF-IDF vectors for every item over the shared corpus.
// Term frequency is max-normalized within the item; IDF is smoothed so terms
// present in every headline still carry a small positive weight.
func vectorize(items []Item, stopWords map[string]bool) []vector {
	tokens := make([][]string, len(items))
	docFreq := make(map[string]int)

	for i, item := range items {
		seen := make(map[string]bool)

		for _, word := range tokenize(item.Title) {
			if !validTerm(word, stopWords) {
				continue
			}

			tokens[i] = append(tokens[i], word)

			if !seen[word] {
				seen[word] = true
				docFreq[word]++
			}
		}
	}

	n := float64(len(items))
	vectors := make([]vector, len(items))

	for i, words := range tokens {
		if len(words) == 0 {
			vectors[i] = vector{}
			continue
		}

		tf := make(map[string]int)
		maxFreq := 1

		for _, word := range words {
			tf[word]++
			if tf[word] > maxFreq {
				maxFreq = tf[word]
			}
		}

		vec := make(vector, len(tf))

		for word, count := range tf {
			idf := math.Log(n/float64(1+docFreq[word])) + 1
			vec[word] = float64(count) / float64(maxFreq) * idf
		}

		vectors[i] = vec
	}

	return vectors
}

// cosineSimilarity over sparse vectors; zero or empty vectors score 0.
func cosineSimilarity(a, b vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate the smaller map.
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot float64

	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}

	if dot == 0 {
		return 0
	}

	normA := norm(a)
	normB := norm(b)

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (normA * normB)
}

func norm(v vector) float64 {
	var sum float64

	for _, w := range v {
		sum += w * w
	}

	return math.Sqrt(sum)
}

// topTerms aggregates member vectors and returns the n heaviest terms,
// heaviest first, ties broken lexically so output is reproducible.
func topTerms(vectors []vector, n int) []string {
	totals := make(map[string]float64)

	for _, vec := range vectors {
		for term, w := range vec {
			totals[term] += w
		}
	}

	type termScore struct {
		term  string
		score float64
	}

	scores := make([]termScore, 0, len(totals))
	for term, score := range totals {
		scores = append(scores, termScore{term, score})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}

		return scores[i].term < scores[j].term
	})

	out := make([]string, 0, n)
	for i := 0; i < len(scores) && i < n; i++ {
		out = append(out, scores[i].term)
	}

	return out
}

// tokenize splits text into lowercase words on non-alphanumeric runes.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func validTerm(word string, stopWords map[string]bool) bool {
	if len(word) < minWordLength {
		return false
	}

	if stopWords[word] {
		return false
	}

	for _, r := range word {
		if unicode.IsLetter(r) {
			return true
		}
	}

	return false
}

// buildStopWords covers English function words plus boilerplate that carries
// no thematic signal in financial headlines.
func buildStopWords() map[string]bool {
	words := []string{
		// English function words
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "as", "is", "was", "are", "were", "been",
		"be", "have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "must", "can", "this", "that", "these", "those",
		"it", "its", "they", "their", "what", "which", "who", "where", "when",
		"why", "how", "all", "each", "both", "more", "most", "other", "some",
		"such", "no", "nor", "not", "only", "own", "same", "so", "than", "too",
		"very", "just", "also", "now", "here", "there", "into", "over", "under",
		"after", "before", "amid", "again", "about", "against", "between", "out",
		"off", "then", "once", "new", "says", "said",
		// Financial-headline boilerplate
		"stock", "stocks", "share", "shares", "market", "markets", "company",
		"companies", "inc", "corp", "ltd", "group", "report", "reports",
		"reported", "announces", "announced", "quarter", "quarterly", "year",
		"week", "today", "billion", "million", "percent", "rises", "falls",
		"gains", "drops", "higher", "lower", "investors", "trading",
	}

	stopWords := make(map[string]bool, len(words))
	for _, w := range words {
		stopWords[w] = true
	}

	return stopWords
}
