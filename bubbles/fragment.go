/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bubbles

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s+|$)|[^.!?]+$`)

// SplitFragments breaks text into display-sized fragments of at most maxLen runes.
// Sentences are kept whole where they fit; longer ones are cut at the last
// clause punctuation, then the last whitespace, then hard at maxLen. Fragments shorter
// than minLen are merged into their successor when the result still fits.
func SplitFragments(text string, maxLen, minLen int) []string {
	var result []string

	for _, sentence := range sentencePattern.FindAllString(text, -1) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}

		if utf8.RuneCountInString(trimmed) <= maxLen {
			result = appendFragment(result, trimmed, maxLen, minLen)
			continue
		}

		runes := []rune(trimmed)
		start := 0
		for len(runes)-start > maxLen {
			window := runes[start:]
			cut := cutPoint(window, maxLen, minLen)

			piece := strings.TrimSpace(string(window[:cut]))
			if piece != "" {
				result = appendFragment(result, piece, maxLen, minLen)
			}

			start += cut
			for start < len(runes) && unicode.IsSpace(runes[start]) {
				start++
			}
		}
		if start < len(runes) {
			result = appendFragment(result, string(runes[start:]), maxLen, minLen)
		}
	}

	if len(result) == 0 {
		return []string{strings.TrimSpace(text)}
	}

	return result
}

func appendFragment(result []string, fragment string, maxLen, minLen int) []string {
	if n := len(result); n > 0 {
		prev := result[n-1]
		prevLen := utf8.RuneCountInString(prev)
		if prevLen < minLen && prevLen+1+utf8.RuneCountInString(fragment) <= maxLen {
			result[n-1] = prev + " " + fragment
			return result
		}
	}

	return append(result, fragment)
}

// cutPoint picks where to split an over-long run of runes. The returned index
// is always in (0, maxLen].
func cutPoint(r []rune, maxLen, minLen int) int {
	cut := -1

	// Punctuation stays with the left piece, so it must sit before index maxLen.
	for i := maxLen - 1; i > minLen; i-- {
		if r[i] == ',' || r[i] == ';' || r[i] == ':' {
			cut = i + 1
			break
		}
	}
	if cut > minLen {
		return cut
	}

	for i := maxLen; i > minLen; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}

	return maxLen
}

// GroupWaves batches fragments into consecutive waves of at most size entries.
func GroupWaves(fragments []string, size int) [][]string {
	if size < 1 {
		size = 1
	}

	waves := make([][]string, 0, (len(fragments)+size-1)/size)
	for i := 0; i < len(fragments); i += size {
		end := min(i+size, len(fragments))
		wave := make([]string, end-i)
		copy(wave, fragments[i:end])
		waves = append(waves, wave)
	}

	return waves
}
