package storyboard

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"github.com/storyreel/storyreel/internal/jobs"
)

const (
	defaultCharacterName = "Main Character"
	defaultSetting       = "community setting"
	defaultVisualStyle   = "soft colorful 3D animation, warm lighting, gentle camera movement"
	defaultTheme         = "growth"

	maxCharacters = 3
)

// Keyword tables are scanned in order so extraction stays deterministic.
var settingKeywords = []struct{ keyword, label string }{
	{"school", "school campus"},
	{"classroom", "school campus"},
	{"village", "quiet village"},
	{"forest", "deep forest"},
	{"ocean", "seaside"},
	{"sea", "seaside"},
	{"beach", "seaside"},
	{"city", "busy city"},
	{"space", "outer space"},
	{"farm", "countryside farm"},
	{"mountain", "mountain trail"},
	{"river", "riverside"},
	{"market", "street market"},
	{"home", "family home"},
	{"学校", "school campus"},
	{"教室", "school campus"},
	{"森林", "deep forest"},
	{"海边", "seaside"},
	{"城市", "busy city"},
	{"乡村", "quiet village"},
	{"河边", "riverside"},
	{"家里", "family home"},
}

var styleKeywords = []struct{ keyword, label string }{
	{"anime", "anime style, expressive characters, vivid colors"},
	{"cartoon", "playful 2D cartoon style, bold outlines"},
	{"watercolor", "hand-painted watercolor style, soft edges"},
	{"pixel", "retro pixel-art style"},
	{"realistic", "cinematic realistic style, natural lighting"},
	{"水彩", "hand-painted watercolor style, soft edges"},
	{"动画", "playful 2D cartoon style, bold outlines"},
	{"写实", "cinematic realistic style, natural lighting"},
}

var themeKeywords = []struct{ keyword, label string }{
	{"friend", "friendship"},
	{"courage", "courage"},
	{"brave", "courage"},
	{"family", "family"},
	{"environment", "protecting nature"},
	{"nature", "protecting nature"},
	{"kind", "kindness"},
	{"team", "teamwork"},
	{"dream", "chasing dreams"},
	{"朋友", "friendship"},
	{"勇敢", "courage"},
	{"家人", "family"},
	{"环保", "protecting nature"},
	{"梦想", "chasing dreams"},
}

// Words that start sentences often enough to pollute naive name detection.
var nameStopwords = map[string]struct{}{
	"The": {}, "A": {}, "An": {}, "And": {}, "But": {}, "Then": {},
	"When": {}, "One": {}, "It": {}, "He": {}, "She": {}, "They": {},
	"His": {}, "Her": {}, "There": {}, "This": {}, "That": {}, "In": {},
	"On": {}, "At": {}, "After": {}, "Before": {}, "So": {}, "As": {},
	"We": {}, "I": {}, "You": {}, "My": {}, "Once": {}, "Every": {},
}

// ExtractContext derives a shared story context from the script. Best-effort
// keyword heuristics; always fully populated, same script always yields the
// same context.
func ExtractContext(script string, lang language.Tag) *jobs.StoryContext {
	lower := strings.ToLower(script)

	ctx := &jobs.StoryContext{
		Setting:     defaultSetting,
		VisualStyle: defaultVisualStyle,
		Theme:       defaultTheme,
	}
	if lang != language.Und {
		ctx.Language = lang.String()
	}

	for _, entry := range settingKeywords {
		if strings.Contains(lower, entry.keyword) {
			ctx.Setting = entry.label
			break
		}
	}
	for _, entry := range styleKeywords {
		if strings.Contains(lower, entry.keyword) {
			ctx.VisualStyle = entry.label
			break
		}
	}
	for _, entry := range themeKeywords {
		if strings.Contains(lower, entry.keyword) {
			ctx.Theme = entry.label
			break
		}
	}

	names := extractNames(script)
	if len(names) == 0 {
		ctx.Characters = []jobs.Character{{
			Name:        defaultCharacterName,
			Description: "the protagonist of the story",
		}}
		return ctx
	}
	for _, name := range names {
		ctx.Characters = append(ctx.Characters, jobs.Character{
			Name:        name,
			Description: "recurring character in the story",
		})
	}
	return ctx
}

// extractNames returns up to maxCharacters capitalized words that repeat in
// the script, in first-appearance order.
func extractNames(script string) []string {
	words := strings.FieldsFunc(script, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, word := range words {
		runes := []rune(word)
		if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
			continue
		}
		if _, stop := nameStopwords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	ret := make([]string, 0, maxCharacters)
	for _, word := range order {
		if counts[word] < 2 {
			continue
		}
		ret = append(ret, word)
		if len(ret) == maxCharacters {
			break
		}
	}
	return ret
}
