package storyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestExtractContext_FindsRecurringNames(t *testing.T) {
	script := "Mia walked to school with Leo. Mia shared her umbrella when the rain started. Leo thanked Mia with a drawing."

	ctx := ExtractContext(script, language.English)

	require.NotNil(t, ctx)
	require.Len(t, ctx.Characters, 2)
	assert.Equal(t, "Mia", ctx.Characters[0].Name)
	assert.Equal(t, "Leo", ctx.Characters[1].Name)
	assert.Equal(t, "school campus", ctx.Setting)
	assert.Equal(t, "en", ctx.Language)
}

func TestExtractContext_DefaultsWhenNoSignal(t *testing.T) {
	ctx := ExtractContext("a quiet unremarkable tale with nobody named twice", language.Und)

	require.Len(t, ctx.Characters, 1)
	assert.Equal(t, defaultCharacterName, ctx.Characters[0].Name)
	assert.Equal(t, defaultSetting, ctx.Setting)
	assert.Equal(t, defaultVisualStyle, ctx.VisualStyle)
	assert.Equal(t, defaultTheme, ctx.Theme)
	assert.Empty(t, ctx.Language)
}

func TestExtractContext_StyleAndThemeCues(t *testing.T) {
	script := "Nori and Nori's brave little robot explore the forest in watercolor dreams about friendship."

	ctx := ExtractContext(script, language.English)

	assert.Equal(t, "deep forest", ctx.Setting)
	assert.Equal(t, "hand-painted watercolor style, soft edges", ctx.VisualStyle)
	assert.Equal(t, "friendship", ctx.Theme)
}

func TestExtractContext_IsDeterministic(t *testing.T) {
	script := "Kira sailed past the city docks. Kira waved at every boat."

	first := ExtractContext(script, language.English)
	second := ExtractContext(script, language.English)

	assert.Equal(t, first, second)
}

func TestExtractContext_CapsCharacterCount(t *testing.T) {
	script := "Ana met Ben. Ben met Cleo. Cleo met Dave. Dave met Ana. Ana Ben Cleo Dave played together."

	ctx := ExtractContext(script, language.English)

	assert.Len(t, ctx.Characters, maxCharacters)
}
