package storyflow

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"z-story-flow-api/internal/config"
	"z-story-flow-api/internal/domain/entity"
	"z-story-flow-api/internal/infrastructure/persistence/memory"
	"z-story-flow-api/pkg/errors"
)

func defaultLimits() StepLimits {
	return StepLimitsFromConfig(&config.FlowStepsConfig{
		StoryQuestion:    config.StepConfig{MaxTokens: 150},
		AIStory:          config.StepConfig{MaxTokens: 150},
		DecisionQuestion: config.StepConfig{MaxTokens: 150},
		FinalStory:       config.StepConfig{MaxTokens: 0},
	})
}

func newTestController(completer *MockCompleter) (*Controller, *memory.StateStore) {
	store := memory.NewStateStore()
	flow := NewFlow(completer, nil, defaultLimits())
	return flow.Controller("s-test", store), store
}

func fieldValue(t *testing.T, store *memory.StateStore, key entity.FieldKey) entity.Field {
	t.Helper()
	f, found, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found, "field %s should be present", key)
	return f
}

func TestEnsureStoryQuestionGeneratesOnce(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldStoryQuestion)).Return("What should they do?", nil).Once()
	completer.On("Complete", mock.Anything, forStep(entity.FieldStoryQuestion)).Return("Something else entirely?", nil)

	ctrl, store := newTestController(completer)
	require.NoError(t, ctrl.SetTheme(ctx, "Fantasy"))
	require.NoError(t, ctrl.SaveStartingScene(ctx, "Aria and Dr. Orion arrive at a forest"))

	res, err := ctrl.EnsureStoryQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeGenerated, res.Outcome)
	assert.Equal(t, 4, res.Words)

	res, err = ctrl.EnsureStoryQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeCached, res.Outcome)

	f := fieldValue(t, store, entity.FieldStoryQuestion)
	assert.Equal(t, "What should they do?", f.Value)
	assert.Equal(t, entity.FieldStateGenerated, f.State)
	completer.AssertNumberOfCalls(t, "Complete", 1)

	reqs := completer.requests(entity.FieldStoryQuestion)
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Theme: Fantasy")
	assert.Contains(t, reqs[0].Prompt, "Aria and Dr. Orion arrive at a forest")
	require.NotNil(t, reqs[0].MaxTokens)
	assert.Equal(t, 150, *reqs[0].MaxTokens)
}

func TestEnsureStoryQuestionSkippedWithoutStartingScene(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	ctrl, store := newTestController(completer)

	require.NoError(t, ctrl.SetTheme(ctx, "Mystery"))
	res, err := ctrl.EnsureStoryQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeSkipped, res.Outcome)

	has, err := store.Has(ctx, entity.FieldStoryQuestion)
	require.NoError(t, err)
	assert.False(t, has)
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGenerateAIStoryOverwritesEveryTrigger(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStepWith(entity.FieldAIStory, "Action:\nopen the gate")).Return("The gate creaks open.", nil)
	completer.On("Complete", mock.Anything, forStepWith(entity.FieldAIStory, "Action:\nclimb the tree")).Return("From the branches they see smoke.", nil)

	ctrl, store := newTestController(completer)

	require.NoError(t, ctrl.SetParticipantAction(ctx, "open the gate"))
	_, err := ctrl.GenerateAIStory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "The gate creaks open.", fieldValue(t, store, entity.FieldAIStory).Value)

	require.NoError(t, ctrl.SetParticipantAction(ctx, "climb the tree"))
	_, err = ctrl.GenerateAIStory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "From the branches they see smoke.", fieldValue(t, store, entity.FieldAIStory).Value)

	reqs := completer.requests(entity.FieldAIStory)
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[1].Prompt, "open the gate")
}

func TestFinalStoryUsesSnapshotAtTrigger(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldFinalStory)).Return("# The Artifact\nA long tale.", nil).Once()

	ctrl, store := newTestController(completer)
	require.NoError(t, ctrl.SetTheme(ctx, "Adventure"))
	require.NoError(t, ctrl.SetCharacter(ctx, 1, entity.Character{Name: "Aria", Personality: "Brave", Background: "Explorer"}))
	require.NoError(t, ctrl.SetConclusion(ctx, "They keep it hidden."))

	_, err := ctrl.GenerateFinalStory(ctx)
	require.NoError(t, err)

	require.NoError(t, ctrl.SetConclusion(ctx, "They use its power."))
	assert.Equal(t, "# The Artifact\nA long tale.", fieldValue(t, store, entity.FieldFinalStory).Value)

	reqs := completer.requests(entity.FieldFinalStory)
	require.Len(t, reqs, 1)
	assert.Nil(t, reqs[0].MaxTokens, "final story has no output ceiling")
	assert.Contains(t, reqs[0].Prompt, "Conclusion:\nThey keep it hidden.")
	assert.Contains(t, reqs[0].Prompt, "1. Aria – Brave. Background: Explorer")
	assert.Contains(t, reqs[0].Prompt, "Starting Scene:\n\n")
}

func TestGenerationFailureOnlyTouchesTargetField(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldAIStory)).Return("", stderrors.New("timeout"))

	ctrl, store := newTestController(completer)
	require.NoError(t, ctrl.SetTheme(ctx, "Fantasy"))
	require.NoError(t, ctrl.SaveStartingScene(ctx, "At the forest gate"))
	require.NoError(t, ctrl.SetParticipantAction(ctx, "Look around"))
	require.NoError(t, store.Set(ctx, entity.FieldStoryQuestion, entity.NewGeneratedField("What now?")))

	before, err := store.Snapshot(ctx)
	require.NoError(t, err)

	res, err := ctrl.GenerateAIStory(ctx)
	require.Error(t, err)
	var gf *GenerationFailure
	require.True(t, stderrors.As(err, &gf))
	assert.Equal(t, entity.FieldAIStory, gf.Step)
	assert.Equal(t, "timeout", gf.Cause)
	assert.ErrorIs(t, err, errors.ErrGenerationFailed)
	assert.Equal(t, entity.StepOutcomeFailed, res.Outcome)

	after, err := store.Snapshot(ctx)
	require.NoError(t, err)
	for key, f := range before {
		assert.Equal(t, f, after[key], key)
	}
	assert.Len(t, after, len(before)+1)

	failed := after[entity.FieldAIStory]
	assert.Equal(t, "Error: timeout", failed.Value)
	assert.Equal(t, entity.FieldStateGenerationFailed, failed.State)
	assert.Equal(t, "timeout", failed.Error)
}

func TestDecisionGuardRequiresSuccessfulAIStory(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldAIStory)).Return("", stderrors.New("timeout"))

	ctrl, store := newTestController(completer)
	_, err := ctrl.GenerateAIStory(ctx)
	require.Error(t, err)

	res, err := ctrl.EnsureDecisionQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeSkipped, res.Outcome)

	has, _ := store.Has(ctx, entity.FieldDecisionQuestion)
	assert.False(t, has)
	assert.Empty(t, completer.requests(entity.FieldDecisionQuestion))
}

func TestFailedStoryQuestionIsNotRetriedByEnsure(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldStoryQuestion)).Return("", stderrors.New("quota exceeded")).Once()
	completer.On("Complete", mock.Anything, forStep(entity.FieldStoryQuestion)).Return("Which path?", nil).Maybe()

	ctrl, store := newTestController(completer)
	require.NoError(t, ctrl.SaveStartingScene(ctx, "A dark cave"))

	first, err := ctrl.EnsureStoryQuestion(ctx)
	require.Error(t, err)
	assert.Equal(t, entity.StepOutcomeFailed, first.Outcome)

	second, err := ctrl.EnsureStoryQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeCached, second.Outcome)

	results, err := ctrl.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeCached, results[0].Outcome)

	assert.Len(t, completer.requests(entity.FieldStoryQuestion), 1)
	assert.Equal(t, "Error: quota exceeded", fieldValue(t, store, entity.FieldStoryQuestion).Value)
}

func TestSavingStartingSceneAgainClearsFailedQuestion(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldStoryQuestion)).Return("", stderrors.New("quota exceeded")).Once()
	completer.On("Complete", mock.Anything, forStepWith(entity.FieldStoryQuestion, "A bright meadow")).Return("Which path?", nil).Once()

	ctrl, store := newTestController(completer)
	require.NoError(t, ctrl.SaveStartingScene(ctx, "A dark cave"))
	_, err := ctrl.EnsureStoryQuestion(ctx)
	require.Error(t, err)

	require.NoError(t, ctrl.SaveStartingScene(ctx, "A bright meadow"))
	has, err := store.Has(ctx, entity.FieldStoryQuestion)
	require.NoError(t, err)
	assert.False(t, has)

	results, err := ctrl.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeGenerated, results[0].Outcome)
	assert.Equal(t, "Which path?", fieldValue(t, store, entity.FieldStoryQuestion).Value)
	completer.AssertExpectations(t)
}

func TestSavingStartingSceneKeepsGeneratedQuestion(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldStoryQuestion)).Return("Which path?", nil).Once()

	ctrl, store := newTestController(completer)
	require.NoError(t, ctrl.SaveStartingScene(ctx, "A dark cave"))
	_, err := ctrl.EnsureStoryQuestion(ctx)
	require.NoError(t, err)

	require.NoError(t, ctrl.SaveStartingScene(ctx, "A bright meadow"))
	res, err := ctrl.EnsureStoryQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeCached, res.Outcome)
	assert.Equal(t, "Which path?", fieldValue(t, store, entity.FieldStoryQuestion).Value)
	completer.AssertExpectations(t)
}

func TestSuccessfulAIStoryClearsFailedDecisionQuestion(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldAIStory)).Return("They find a hidden path.", nil)
	completer.On("Complete", mock.Anything, forStep(entity.FieldDecisionQuestion)).Return("", stderrors.New("quota exceeded")).Once()
	completer.On("Complete", mock.Anything, forStep(entity.FieldDecisionQuestion)).Return("Left or right?", nil).Once()

	ctrl, store := newTestController(completer)
	_, err := ctrl.GenerateAIStory(ctx)
	require.NoError(t, err)
	_, err = ctrl.EnsureDecisionQuestion(ctx)
	require.Error(t, err)

	// 失败保持到前置条件重新提交
	res, err := ctrl.EnsureDecisionQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeCached, res.Outcome)
	assert.Len(t, completer.requests(entity.FieldDecisionQuestion), 1)

	_, err = ctrl.GenerateAIStory(ctx)
	require.NoError(t, err)
	res, err = ctrl.EnsureDecisionQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StepOutcomeGenerated, res.Outcome)
	assert.Equal(t, "Left or right?", fieldValue(t, store, entity.FieldDecisionQuestion).Value)
	completer.AssertExpectations(t)
}

func TestClearFailureIgnoresOtherStates(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(new(MockCompleter))

	require.NoError(t, ctrl.ClearFailure(ctx, entity.FieldStoryQuestion))
	require.NoError(t, store.Set(ctx, entity.FieldStoryQuestion, entity.NewGeneratedField("Which path?")))
	require.NoError(t, ctrl.ClearFailure(ctx, entity.FieldStoryQuestion))
	assert.Equal(t, "Which path?", fieldValue(t, store, entity.FieldStoryQuestion).Value)
}

func TestEnsureDecisionQuestionAfterAIStory(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldAIStory)).Return("They find a hidden path.", nil)
	completer.On("Complete", mock.Anything, forStepWith(entity.FieldDecisionQuestion, "Previous Story:\nThey find a hidden path.")).Return("Left or right?", nil).Once()

	ctrl, store := newTestController(completer)
	_, err := ctrl.GenerateAIStory(ctx)
	require.NoError(t, err)

	_, err = ctrl.EnsureDecisionQuestion(ctx)
	require.NoError(t, err)
	// 续写重新生成后抉择问题保持不变
	_, err = ctrl.GenerateAIStory(ctx)
	require.NoError(t, err)
	res, err := ctrl.EnsureDecisionQuestion(ctx)
	require.NoError(t, err)

	assert.Equal(t, entity.StepOutcomeCached, res.Outcome)
	assert.Equal(t, "Left or right?", fieldValue(t, store, entity.FieldDecisionQuestion).Value)
	completer.AssertExpectations(t)
}

func TestExportFinalStory(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldFinalStory)).Return("The end.", nil)

	ctrl, _ := newTestController(completer)
	_, _, err := ctrl.ExportFinalStory(ctx)
	assert.ErrorIs(t, err, errors.ErrFinalStoryNotFound)

	_, err = ctrl.GenerateFinalStory(ctx)
	require.NoError(t, err)

	name, text, err := ctrl.ExportFinalStory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Final_Story.txt", name)
	assert.Equal(t, "The end.", text)
}

func TestResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	ctrl, store := newTestController(new(MockCompleter))

	require.NoError(t, ctrl.SetTheme(ctx, "Fantasy"))
	require.NoError(t, ctrl.SaveStartingScene(ctx, "scene"))
	require.NoError(t, ctrl.Reset(ctx))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestSetterValidation(t *testing.T) {
	ctx := context.Background()
	ctrl, _ := newTestController(new(MockCompleter))

	assert.ErrorIs(t, ctrl.SetTheme(ctx, "Romance"), errors.ErrInvalidParam)
	assert.ErrorIs(t, ctrl.SetCharacter(ctx, 3, entity.Character{}), errors.ErrInvalidParam)
	assert.NoError(t, ctrl.SetTheme(ctx, "science fiction"))
}

func TestViewStepStatuses(t *testing.T) {
	ctx := context.Background()
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, forStep(entity.FieldAIStory)).Return("", stderrors.New("timeout"))

	ctrl, _ := newTestController(completer)
	require.NoError(t, ctrl.SetTheme(ctx, "Fantasy"))
	_, _ = ctrl.GenerateAIStory(ctx)

	view, err := ctrl.View(ctx)
	require.NoError(t, err)
	require.Len(t, view.Steps, 9)
	require.Len(t, view.Fields, len(entity.FieldKeys))

	status := map[string]StepStatus{}
	for _, s := range view.Steps {
		status[s.Name] = s.Status
	}
	assert.Equal(t, StepStatusDone, status["theme"])
	assert.Equal(t, StepStatusReady, status["characters"])
	assert.Equal(t, StepStatusPending, status["story_question"])
	assert.Equal(t, StepStatusFailed, status["ai_story"])
	assert.Equal(t, StepStatusPending, status["decision_question"])

	for _, f := range view.Fields {
		if f.Key == entity.FieldCharacter1 {
			require.NotNil(t, f.PlaceholderCharacter)
			assert.Equal(t, "Aria", f.PlaceholderCharacter.Name)
			assert.Nil(t, f.Character)
		}
		if f.Key == entity.FieldAIStory {
			assert.Equal(t, "Error: timeout", f.Value)
		}
	}
}
