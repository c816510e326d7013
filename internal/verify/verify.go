// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify checks that a quoted snippet actually occurs in the text
// it claims to come from. It is the gate between model output and an
// accepted fact: a quote that cannot be found, exactly or approximately,
// is treated as a hallucination.
package verify

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// DefaultThreshold is the minimum score for a quote to be verified.
const DefaultThreshold = 85

// wholeStringPercent is the quote/source length ratio, in percent, above
// which the quote is compared against the entire source instead of its best
// window.
const wholeStringPercent = 70

// Mode names the comparison that produced a score.
type Mode string

const (
	ModeRejected   Mode = "rejected"
	ModeExact      Mode = "exact"
	ModeWhole      Mode = "whole-string"
	ModeBestWindow Mode = "best-window"
)

// Result is the verdict for one quote.
type Result struct {
	Verified bool    `json:"is_verified" yaml:"is_verified"`
	Score    float64 `json:"score" yaml:"score"`
	Mode     Mode    `json:"mode" yaml:"mode"`
	Detail   string  `json:"detail" yaml:"detail"`
}

// Verifier scores quotes against source text. It holds no mutable state
// and is safe for concurrent use.
type Verifier struct {
	threshold float64
}

// New returns a Verifier with the given threshold on a 0-100 scale.
// Non-positive thresholds fall back to DefaultThreshold.
func New(threshold float64) *Verifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Verifier{threshold: threshold}
}

// Threshold returns the configured acceptance threshold.
func (v *Verifier) Threshold() float64 { return v.threshold }

// Verify reports whether quote is grounded in source. The checks run in
// order and the first decisive one wins: empty input, quote longer than
// source, literal containment, then fuzzy similarity.
func (v *Verifier) Verify(source, quote string) Result {
	src := strings.TrimSpace(source)
	q := strings.TrimSpace(quote)

	if src == "" || q == "" {
		return Result{Mode: ModeRejected, Detail: "empty source or quote"}
	}

	srcLen := utf8.RuneCountInString(src)
	qLen := utf8.RuneCountInString(q)

	if qLen > srcLen {
		return Result{Mode: ModeRejected, Detail: "quote longer than source"}
	}

	if strings.Contains(src, q) {
		return Result{Verified: true, Score: 100, Mode: ModeExact, Detail: "exact substring"}
	}

	var (
		score float64
		mode  Mode
	)
	if qLen*100 > srcLen*wholeStringPercent {
		mode = ModeWhole
		score = Ratio(normalize(q), normalize(src))
	} else {
		mode = ModeBestWindow
		score = PartialRatio(normalize(q), normalize(src))
	}
	score = math.Round(score*100) / 100

	return Result{
		Verified: score >= v.threshold,
		Score:    score,
		Mode:     mode,
		Detail:   string(mode) + " similarity",
	}
}

// normalize lowercases s, turns every rune that is not a letter or digit
// into a space, and collapses runs of whitespace.
func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Ratio is the normalized indel similarity of a and b on a 0-100 scale:
// 200 * LCS(a, b) / (len(a) + len(b)).
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 0
	}
	return 200 * float64(edlib.LCS(a, b)) / float64(total)
}

// PartialRatio is the best Ratio between the shorter string and any window
// of the longer string. Windows have the shorter string's length, except at
// the edges of the longer string, where the shorter prefixes and suffixes
// are scored too so that text running past either end still aligns.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if len(short) == len(long) {
		return Ratio(string(short), string(long))
	}

	n := len(short)
	want := make(map[rune]int, n)
	for _, r := range short {
		want[r]++
	}

	best := 0.0
	shortStr := string(short)

	// score rates one window unless its shared-rune count already bounds
	// the result below best. It reports whether a perfect match was found.
	score := func(window []rune, shared int) bool {
		bound := 200 * float64(shared) / float64(n+len(window))
		if bound <= best {
			return false
		}
		if s := Ratio(shortStr, string(window)); s > best {
			best = s
		}
		return best == 100
	}

	// Prefix windows long[:i] grow by one rune at the end.
	h := newHistogram(want)
	for i := 1; i < n; i++ {
		h.add(long[i-1])
		if score(long[:i], h.shared) {
			return best
		}
	}

	// Suffix windows long[len-i:] grow by one rune at the front.
	h = newHistogram(want)
	for i := 1; i < n; i++ {
		h.add(long[len(long)-i])
		if score(long[len(long)-i:], h.shared) {
			return best
		}
	}

	// Full-length windows slide one rune at a time.
	h = newHistogram(want)
	for _, r := range long[:n] {
		h.add(r)
	}
	for start := 0; start+n <= len(long); start++ {
		if start > 0 {
			h.remove(long[start-1])
			h.add(long[start+n-1])
		}
		if score(long[start:start+n], h.shared) {
			break
		}
	}
	return best
}

// histogram counts the runes of a window that can pair with runes of the
// short string. shared is an upper bound on their LCS.
type histogram struct {
	want   map[rune]int
	have   map[rune]int
	shared int
}

func newHistogram(want map[rune]int) *histogram {
	return &histogram{want: want, have: make(map[rune]int, len(want))}
}

func (h *histogram) add(r rune) {
	h.have[r]++
	if h.have[r] <= h.want[r] {
		h.shared++
	}
}

func (h *histogram) remove(r rune) {
	if h.have[r] <= h.want[r] {
		h.shared--
	}
	h.have[r]--
}
