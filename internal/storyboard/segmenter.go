package storyboard

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/storyreel/storyreel/internal/jobs"
)

const (
	// MaxScenes caps generation cost: at ~9s per clip seven scenes is
	// roughly one minute of output.
	MaxScenes = 7

	DefaultSceneSeconds = 9.0

	maxDescriptionRunes = 280
)

// Storyboard is the ordered scene plan for a script plus the detected
// narration language.
type Storyboard struct {
	Scenes   []jobs.Scene
	Language language.Tag
}

// Build splits a script into at most MaxScenes ordered scenes. It never
// fails: unparseable input collapses into a single scene describing the
// whole script. Pure function of the script text.
func Build(script string) Storyboard {
	lang := detectLanguage(script)

	sentences := splitSentences(script)
	if len(sentences) == 0 {
		fallback := truncateRunes(strings.TrimSpace(script), maxDescriptionRunes)
		if fallback == "" {
			fallback = "a short animated story"
		}
		return Storyboard{
			Scenes: []jobs.Scene{{
				Index:         1,
				Description:   fallback,
				TargetSeconds: DefaultSceneSeconds,
			}},
			Language: lang,
		}
	}

	sceneCount := len(sentences)
	if sceneCount > MaxScenes {
		sceneCount = MaxScenes
	}

	scenes := make([]jobs.Scene, 0, sceneCount)
	for i := 0; i < sceneCount; i++ {
		// Distribute sentences evenly; the final scene absorbs the remainder.
		start := i * len(sentences) / sceneCount
		end := (i + 1) * len(sentences) / sceneCount
		desc := strings.Join(sentences[start:end], " ")
		scenes = append(scenes, jobs.Scene{
			Index:         i + 1,
			Description:   truncateRunes(desc, maxDescriptionRunes),
			TargetSeconds: DefaultSceneSeconds,
		})
	}
	return Storyboard{Scenes: scenes, Language: lang}
}

func detectLanguage(script string) language.Tag {
	info := whatlanggo.Detect(script)
	if !info.IsReliable() {
		return language.Und
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return language.Und
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return tag
}

// sentenceTerminators covers Latin and CJK full-width punctuation; CJK marks
// never occur in Latin scripts so both sets are always active.
const sentenceTerminators = ".!?\n。！？；"

func splitSentences(script string) []string {
	ret := make([]string, 0)
	var sb strings.Builder
	flush := func() {
		s := strings.TrimSpace(sb.String())
		sb.Reset()
		if s != "" {
			ret = append(ret, s)
		}
	}
	for _, r := range script {
		sb.WriteRune(r)
		if strings.ContainsRune(sentenceTerminators, r) {
			flush()
		}
	}
	flush()
	return ret
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
