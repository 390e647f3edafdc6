package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotTextIgnoresFailedAndAbsent(t *testing.T) {
	snap := Snapshot{
		FieldStartingScene: NewUserField(""),
		FieldAIStory:       NewFailedField("timeout"),
		FieldConclusion:    NewUserField("The end."),
	}

	assert.Equal(t, "", snap.Text(FieldStartingScene))
	assert.True(t, snap.Satisfied(FieldStartingScene), "empty user value is still present")

	assert.Equal(t, "", snap.Text(FieldAIStory))
	assert.False(t, snap.Satisfied(FieldAIStory))
	assert.Equal(t, "Error: timeout", snap.Field(FieldAIStory).Value)

	assert.Equal(t, "", snap.Text(FieldRefinement))
	assert.Equal(t, FieldStateUnset, snap.Field(FieldRefinement).State)
	assert.Equal(t, "The end.", snap.Text(FieldConclusion))
}

func TestFailedFieldMarker(t *testing.T) {
	f := NewFailedField("quota exceeded")
	assert.Equal(t, FieldStateGenerationFailed, f.State)
	assert.Equal(t, "quota exceeded", f.Error)
	assert.True(t, f.Failed())
	assert.False(t, f.Satisfied())
}

func TestParseTheme(t *testing.T) {
	cases := map[string]Theme{
		"Fantasy":         ThemeFantasy,
		" mystery ":       ThemeMystery,
		"Science Fiction": ThemeScienceFiction,
		"science_fiction": ThemeScienceFiction,
		"ADVENTURE":       ThemeAdventure,
	}
	for in, want := range cases {
		got, err := ParseTheme(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTheme("Romance")
	assert.Error(t, err)
}

func TestCharacterPromptLine(t *testing.T) {
	c := Character{Name: "Aria", Personality: "Brave", Background: "An adventurer"}
	assert.Equal(t, "1. Aria – Brave. Background: An adventurer", c.PromptLine(1))
	assert.Equal(t, "2.  – . Background: ", Character{}.PromptLine(2))
}

func TestFieldKeyClassification(t *testing.T) {
	assert.True(t, FieldStoryQuestion.IsGenerated())
	assert.True(t, FieldFinalStory.IsGenerated())
	assert.False(t, FieldConclusion.IsGenerated())
	assert.True(t, FieldCharacter2.IsCharacter())
	assert.False(t, FieldKey("starting_scene_draft").IsValid())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "Fantasy", Placeholder(FieldTheme))
	assert.Empty(t, Placeholder(FieldFinalStory))
	c, ok := PlaceholderCharacter(FieldCharacter1)
	require.True(t, ok)
	assert.Equal(t, "Aria", c.Name)
}
