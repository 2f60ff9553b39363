package recommend

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/liber-ai/sommelier/internal/model"
)

// mentionThreshold is deliberately strict: in practice only a full-name
// match clears it, keeping false positives out of the proposal log.
const mentionThreshold = 80

var yearToken = regexp.MustCompile(`^\d{4}$`)

// denominationTokens are label boilerplate that carries no identity.
var denominationTokens = map[string]bool{
	"doc": true, "docg": true, "igt": true, "dop": true, "igp": true,
	"riserva": true, "superiore": true, "classico": true, "brut": true,
	"extra": true, "secco": true, "delle": true, "della": true, "dell": true,
}

// wineKeywords mark a stretch of text as talking about a bottle.
var wineKeywords = []string{"vino", "wine", "bottiglia", "bottle", "rosso", "bianco", "calice", "etichetta"}

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics so Italian labels match no matter
// how the model spelled them.
func fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

type mention struct {
	wine  model.Wine
	score int
	pos   int
}

// ExtractMentions recovers which catalog wines a free-text reply actually
// talks about, in order of appearance. Used on the legacy path when no
// structured selection exists.
func ExtractMentions(text string, wines []model.Wine) []model.Wine {
	folded := fold(text)

	var found []mention
	for _, w := range wines {
		m, ok := scoreMention(folded, w)
		if ok && m.score > mentionThreshold {
			found = append(found, m)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].pos != found[j].pos {
			return found[i].pos < found[j].pos
		}
		return found[i].score > found[j].score
	})

	seen := make(map[int64]bool, len(found))
	out := make([]model.Wine, 0, len(found))
	for _, m := range found {
		if seen[m.wine.ID] {
			continue
		}
		seen[m.wine.ID] = true
		out = append(out, m.wine)
	}
	return out
}

// scoreMention rates how confidently the text refers to the wine. Exact
// full-name match scores 100; significant-word overlap scores up to 50;
// a lone long first word near a price or wine keyword scores 20. The
// strategies do not stack: the best one wins.
func scoreMention(foldedText string, w model.Wine) (mention, bool) {
	name := fold(w.Name)
	if name == "" {
		return mention{}, false
	}

	if pos := strings.Index(foldedText, name); pos >= 0 {
		return mention{wine: w, score: 100, pos: pos}, true
	}

	best := mention{wine: w, pos: -1}

	words := significantWords(name)
	if len(words) > 0 {
		matched := 0
		firstPos := -1
		for _, word := range words {
			if pos := indexWord(foldedText, word); pos >= 0 {
				matched++
				if firstPos < 0 || pos < firstPos {
					firstPos = pos
				}
			}
		}
		if matched > 0 {
			best.score = 50 * matched / len(words)
			best.pos = firstPos
		}
	}

	if best.score < 20 {
		first := strings.Fields(name)
		if len(first) > 0 && len(first[0]) > 4 {
			if pos := indexWord(foldedText, first[0]); pos >= 0 && nearWineContext(foldedText, pos) {
				best.score = 20
				best.pos = pos
			}
		}
	}

	if best.pos < 0 {
		return mention{}, false
	}
	return best, true
}

// significantWords keeps the identity-bearing words of a label: longer
// than three characters, not a denomination token, not a vintage year.
func significantWords(foldedName string) []string {
	var out []string
	for _, w := range strings.Fields(foldedName) {
		w = strings.Trim(w, ".,'\"()")
		if len(w) <= 3 || denominationTokens[w] || yearToken.MatchString(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// indexWord finds word in text at a word boundary.
func indexWord(text, word string) int {
	from := 0
	for {
		idx := strings.Index(text[from:], word)
		if idx < 0 {
			return -1
		}
		pos := from + idx
		before := pos == 0 || !isWordRune(rune(text[pos-1]))
		afterIdx := pos + len(word)
		after := afterIdx >= len(text) || !isWordRune(rune(text[afterIdx]))
		if before && after {
			return pos
		}
		from = pos + len(word)
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// nearWineContext reports whether a price sign or wine keyword appears
// within a short window around pos.
func nearWineContext(text string, pos int) bool {
	lo := pos - 40
	if lo < 0 {
		lo = 0
	}
	hi := pos + 40
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]
	if strings.Contains(window, "€") || strings.Contains(window, "euro") {
		return true
	}
	for _, kw := range wineKeywords {
		if strings.Contains(window, kw) {
			return true
		}
	}
	return false
}
