package segment

import (
	"errors"
	"log"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPauseSeconds is the trailing pause assigned to a unit that ends in a
// sentence terminator without an explicit annotation.
const DefaultPauseSeconds = 1.5

// ErrNoSentences indicates scene text produced no narratable units.
var ErrNoSentences = errors.New("no sentences detected within scene text")

const pauseLabelPattern = `(?:sec(?:onds?)?|secs?|s)`

// Matches explicit pause annotations such as "(3 seconds)", "*(1.5 sec)*" or
// "(sec 2)". The numeric value may precede or follow the unit label.
var pauseAnnotationRe = regexp.MustCompile(
	`(?i)\*?\(?\s*(?:(\d+(?:\.\d+)?)\s*` + pauseLabelPattern + `\b|` + pauseLabelPattern + `\s*(\d+(?:\.\d+)?))\s*\)?\*?`,
)

var leadingPauseRe = regexp.MustCompile(
	`(?i)^\s*\*?\(?\s*(?:(\d+(?:\.\d+)?)\s*` + pauseLabelPattern + `\b|` + pauseLabelPattern + `\s*(\d+(?:\.\d+)?))\s*\)?\*?`,
)

var (
	spaceRunRe         = regexp.MustCompile(`\s+`)
	spaceBeforePunctRe = regexp.MustCompile(`\s+([.?!।,;:])`)
)

var sentenceTerminators = map[rune]bool{
	'.': true,
	'?': true,
	'!': true,
	'।': true,
}

// Clause-level default pauses keyed by the punctuation closing the clause.
var punctuationPauses = map[rune]float64{
	',': 0.5,
	'.': 1.5,
	'।': 1.5,
	'?': 1.5,
	'!': 1.5,
}

// IsSentenceTerminator reports whether r closes a sentence unit.
func IsSentenceTerminator(r rune) bool { return sentenceTerminators[r] }

// EndsWithTerminator reports whether the last rune of s is a sentence terminator.
func EndsWithTerminator(s string) bool {
	r, size := utf8.DecodeLastRuneInString(s)
	return size > 0 && sentenceTerminators[r]
}

// HasPauseAnnotation reports whether s contains an explicit pause annotation.
func HasPauseAnnotation(s string) bool { return pauseAnnotationRe.MatchString(s) }

// StripPauseAnnotations removes every explicit pause annotation from s.
func StripPauseAnnotations(s string) string {
	return pauseAnnotationRe.ReplaceAllString(s, "")
}

// TidyText collapses whitespace runs left behind by annotation stripping and
// reattaches punctuation that ended up preceded by a space.
func TidyText(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = spaceBeforePunctRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

func annotationSeconds(src string, loc []int) (float64, bool) {
	for _, g := range []int{1, 2} {
		lo, hi := loc[2*g], loc[2*g+1]
		if lo < 0 {
			continue
		}
		v, err := strconv.ParseFloat(src[lo:hi], 64)
		if err == nil {
			return v, true
		}
	}
	return 0, false
}

func firstAnnotationSeconds(s string) (float64, bool) {
	loc := pauseAnnotationRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return 0, false
	}
	return annotationSeconds(s, loc)
}

// FallbackSentencePlan derives the deterministic segmentation for scene text:
// a forward scan that closes a unit at every sentence terminator. A pause
// annotation inside the unit, or immediately after its terminator, supplies
// the target pause; otherwise terminated units get DefaultPauseSeconds and an
// unterminated trailing remainder gets zero.
func FallbackSentencePlan(sceneText string) ([]PausePlan, error) {
	var plans []PausePlan
	start, i := 0, 0

	for i < len(sceneText) {
		r, size := utf8.DecodeRuneInString(sceneText[i:])
		i += size
		if !sentenceTerminators[r] {
			continue
		}
		unit := sceneText[start:i]
		if loc := leadingPauseRe.FindStringSubmatchIndex(sceneText[i:]); loc != nil {
			if v, ok := annotationSeconds(sceneText[i:], loc); ok {
				plans = appendUnit(plans, unit, &v)
				i += loc[1]
				start = i
				continue
			}
		}
		plans = appendUnit(plans, unit, nil)
		start = i
	}

	remainder := strings.TrimSpace(sceneText[start:])
	if remainder != "" {
		annotated, hasAnnotation := firstAnnotationSeconds(remainder)
		cleaned := TidyText(StripPauseAnnotations(remainder))
		switch {
		case cleaned != "":
			pause := 0.0
			if hasAnnotation {
				pause = annotated
			} else if EndsWithTerminator(cleaned) {
				pause = DefaultPauseSeconds
			}
			plans = append(plans, PausePlan{Text: cleaned, PauseAfterSeconds: pause})
		case hasAnnotation && annotated > 0 && len(plans) > 0:
			// Annotation-only remainder binds to the preceding unit.
			plans[len(plans)-1].PauseAfterSeconds = annotated
		}
	}

	if len(plans) == 0 {
		return nil, ErrNoSentences
	}
	return plans, nil
}

func appendUnit(plans []PausePlan, unit string, trailing *float64) []PausePlan {
	inline, hasInline := firstAnnotationSeconds(unit)
	cleaned := TidyText(StripPauseAnnotations(unit))
	if cleaned == "" {
		// Punctuation or annotation residue only; keep any pause value for the
		// previous unit.
		if len(plans) > 0 {
			if trailing != nil {
				plans[len(plans)-1].PauseAfterSeconds = *trailing
			} else if hasInline {
				plans[len(plans)-1].PauseAfterSeconds = inline
			}
		}
		return plans
	}

	pause := 0.0
	switch {
	case trailing != nil:
		pause = *trailing
	case hasInline:
		pause = inline
	case EndsWithTerminator(cleaned):
		pause = DefaultPauseSeconds
	}
	return append(plans, PausePlan{Text: cleaned, PauseAfterSeconds: pause})
}

// SplitClauses breaks unit text at clause punctuation for fine-grained pause
// control. With comma-pause enforcement off the text stays a single clause
// with no trailing pause of its own.
func SplitClauses(text string, enforceCommaPause bool) []ClauseSpec {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if !enforceCommaPause {
		return []ClauseSpec{{Text: trimmed}}
	}

	var specs []ClauseSpec
	var buf strings.Builder
	for _, r := range text {
		buf.WriteRune(r)
		pause, ok := punctuationPauses[r]
		if !ok {
			continue
		}
		clause := strings.TrimSpace(buf.String())
		buf.Reset()
		if clause != "" {
			specs = append(specs, ClauseSpec{Text: clause, PauseSeconds: pause})
		}
	}
	if trailing := strings.TrimSpace(buf.String()); trailing != "" {
		specs = append(specs, ClauseSpec{Text: trailing})
	}
	if len(specs) == 0 {
		specs = append(specs, ClauseSpec{Text: trimmed})
	}
	return specs
}

// NormalizePlanText concatenates unit texts and removes whitespace, markdown
// markup and zero-width characters, producing the canonical form used for the
// content-preservation check.
func NormalizePlanText(plans []PausePlan) string {
	var b strings.Builder
	for _, p := range plans {
		b.WriteString(strings.TrimSpace(p.Text))
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '*', '_', '`', '~', '\u200b', '\u200c', '\u200d':
			return -1
		}
		return r
	}, b.String())
}

// ValidateAssistedPlan accepts an assistant-proposed segmentation only when it
// narrates exactly the same content as the fallback plan and contains no
// negative pauses. On any violation the fallback is returned. The assistant
// may move pause boundaries, never alter narrated words.
func ValidateAssistedPlan(sceneName string, fallback, candidate []PausePlan) ([]PausePlan, bool) {
	if len(candidate) == 0 {
		log.Printf("segmentation: empty assisted plan for scene %q, keeping fallback", sceneName)
		return fallback, false
	}
	if NormalizePlanText(fallback) != NormalizePlanText(candidate) {
		log.Printf("segmentation: assisted plan altered text content for scene %q, keeping fallback", sceneName)
		return fallback, false
	}
	for i, p := range candidate {
		if p.PauseAfterSeconds < 0 {
			log.Printf("segmentation: negative pause at index %d for scene %q, keeping fallback", i, sceneName)
			return fallback, false
		}
	}
	return candidate, true
}
