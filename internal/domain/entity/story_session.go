package entity

import (
	"fmt"
	"strings"
	"time"
)

// StorySession 故事构建会话
type StorySession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStorySession 创建会话
func NewStorySession(id string) *StorySession {
	now := time.Now()
	return &StorySession{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Expired 会话是否已空闲超过 ttl
func (s *StorySession) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.UpdatedAt) > ttl
}

// Theme 故事主题
type Theme string

const (
	ThemeFantasy        Theme = "Fantasy"
	ThemeScienceFiction Theme = "Science Fiction"
	ThemeMystery        Theme = "Mystery"
	ThemeAdventure      Theme = "Adventure"
)

// Themes 可选主题，首项为默认
var Themes = []Theme{ThemeFantasy, ThemeScienceFiction, ThemeMystery, ThemeAdventure}

// ParseTheme 解析主题，忽略大小写与首尾空白
func ParseTheme(s string) (Theme, error) {
	v := strings.TrimSpace(s)
	for _, t := range Themes {
		if strings.EqualFold(string(t), v) {
			return t, nil
		}
	}
	// 兼容 science_fiction / sciencefiction 写法
	compact := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(v))
	if compact == "sciencefiction" {
		return ThemeScienceFiction, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Character 角色
type Character struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
	Background  string `json:"background"`
}

// IsEmpty 三项均为空
func (c Character) IsEmpty() bool {
	return c.Name == "" && c.Personality == "" && c.Background == ""
}

// PromptLine 提示词中的角色行
func (c Character) PromptLine(index int) string {
	return fmt.Sprintf("%d. %s – %s. Background: %s", index, c.Name, c.Personality, c.Background)
}
