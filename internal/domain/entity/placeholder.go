package entity

// 输入框默认占位内容，仅用于展示，不写入存储，也不参与提示词拼装
var placeholders = map[FieldKey]string{
	FieldTheme:             string(ThemeFantasy),
	FieldStartingScene:     "Aria and Dr. Orion arrive at the entrance of an ancient, mystical forest rumored to contain a legendary artifact.",
	FieldParticipantAction: "Aria examines the map while Dr. Orion looks for clues around the entrance.",
	FieldDecisionTaken:     "They decide to follow the hidden path.",
	FieldRefinement:        "Adjust the character dialogue to better reflect their personalities.",
	FieldConclusion:        "Aria and Dr. Orion uncover the artifact and must decide whether to use its power or keep it hidden.",
}

var characterPlaceholders = map[FieldKey]Character{
	FieldCharacter1: {
		Name:        "Aria",
		Personality: "Brave, curious, kind-hearted",
		Background:  "A young adventurer seeking ancient secrets",
	},
	FieldCharacter2: {
		Name:        "Dr. Orion",
		Personality: "Intelligent, secretive, analytical",
		Background:  "A scientist with a mysterious past and hidden agenda",
	},
}

// Placeholder 字段占位文本，生成类字段没有占位
func Placeholder(key FieldKey) string {
	return placeholders[key]
}

// PlaceholderCharacter 角色占位
func PlaceholderCharacter(key FieldKey) (Character, bool) {
	c, ok := characterPlaceholders[key]
	return c, ok
}
