package storyboard

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestBuild_CapsSceneCount(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "The rabbit hopped across field number %d looking for carrots. ", i)
	}

	board := Build(sb.String())

	require.Len(t, board.Scenes, MaxScenes)
	for i, scene := range board.Scenes {
		assert.Equal(t, i+1, scene.Index)
		assert.NotEmpty(t, scene.Description)
		assert.Equal(t, DefaultSceneSeconds, scene.TargetSeconds)
	}
}

func TestBuild_ShortScriptYieldsOneScenePerSentence(t *testing.T) {
	script := "Mia found a lost kitten in the rain. She carried it home under her coat. The kitten became her best friend."

	board := Build(script)

	require.Len(t, board.Scenes, 3)
	assert.Contains(t, board.Scenes[0].Description, "lost kitten")
	assert.Contains(t, board.Scenes[2].Description, "best friend")
}

func TestBuild_NeverReturnsEmptyStoryboard(t *testing.T) {
	for _, script := range []string{"", "   ", "no terminal punctuation at all"} {
		board := Build(script)
		require.NotEmpty(t, board.Scenes, "script %q", script)
		assert.Equal(t, 1, board.Scenes[0].Index)
		assert.NotEmpty(t, board.Scenes[0].Description)
	}
}

func TestBuild_SplitsCJKSentences(t *testing.T) {
	script := "小明在学校里捡到了一只小猫。他把小猫带回了家。小猫和他成为了好朋友。"

	board := Build(script)

	require.Len(t, board.Scenes, 3)
	base, _ := board.Language.Base()
	assert.Equal(t, "zh", base.String())
}

func TestBuild_IsDeterministic(t *testing.T) {
	script := "Leo planted a tiny seed. He watered it every morning. One day it grew into a tall sunflower. The whole street came to see it."

	first := Build(script)
	second := Build(script)

	assert.Equal(t, first.Scenes, second.Scenes)
	assert.Equal(t, first.Language, second.Language)
}

func TestDetectLanguage_UnreliableFallsBackToUnd(t *testing.T) {
	assert.Equal(t, language.Und, detectLanguage("123 456"))
}
