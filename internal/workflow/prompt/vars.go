package prompt

import (
	"strings"

	"z-story-flow-api/internal/domain/entity"
)

// StoryVars 从快照构造模板变量
// 所有模板共用同一组变量，缺失字段渲染为空串，保证模板结构稳定
func StoryVars(snap entity.Snapshot) map[string]any {
	return map[string]any{
		"theme":              string(snap.Theme()),
		"characters":         CharactersBlock(snap),
		"starting_scene":     snap.Text(entity.FieldStartingScene),
		"story_question":     snap.Text(entity.FieldStoryQuestion),
		"participant_action": snap.Text(entity.FieldParticipantAction),
		"ai_story":           snap.Text(entity.FieldAIStory),
		"decision_question":  snap.Text(entity.FieldDecisionQuestion),
		"decision_taken":     snap.Text(entity.FieldDecisionTaken),
		"refinement":         snap.Text(entity.FieldRefinement),
		"conclusion":         snap.Text(entity.FieldConclusion),
	}
}

// CharactersBlock 角色段落
func CharactersBlock(snap entity.Snapshot) string {
	var b strings.Builder
	b.WriteString("Characters:\n")
	b.WriteString(snap.Character(entity.FieldCharacter1).PromptLine(1))
	b.WriteString("\n")
	b.WriteString(snap.Character(entity.FieldCharacter2).PromptLine(2))
	return b.String()
}
