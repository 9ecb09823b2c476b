package story_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Javier1112/BookGame/pkg/game"
	"github.com/Javier1112/BookGame/pkg/story"
)

func strPtr(s string) *string { return &s }

func TestBuildUserPromptFirstTurn(t *testing.T) {
	got := story.BuildUserPrompt(game.TurnRequest{BookTitle: "百年孤独", Round: 0})
	assert.Contains(t, got, "《百年孤独》")
	assert.Contains(t, got, "第 1 回合")
	assert.NotContains(t, got, "历史")
}

func TestBuildUserPromptContinuation(t *testing.T) {
	got := story.BuildUserPrompt(game.TurnRequest{
		BookTitle:       "百年孤独",
		Round:           2,
		Choice:          strPtr("伸手触摸冰块"),
		ProtagonistName: strPtr("奥雷里亚诺"),
		History: []game.HistoryEntry{
			{Round: 0, Label: "A", Text: "先观察四周"},
			{Round: 1, Label: "C", Text: "跟随吉卜赛人"},
		},
	})
	assert.Contains(t, got, "第 3 回合")
	assert.Contains(t, got, "主角是奥雷里亚诺。")
	assert.Contains(t, got, "伸手触摸冰块")
	assert.Contains(t, got, "第1回合｜选择：A｜结果：先观察四周")
	assert.Contains(t, got, "第2回合｜选择：C｜结果：跟随吉卜赛人")
	assert.NotContains(t, got, "最后一回合")
}

func TestBuildUserPromptFinalRoundCliffhanger(t *testing.T) {
	got := story.BuildUserPrompt(game.TurnRequest{
		BookTitle: "百年孤独",
		Round:     game.TotalRounds - 1,
		Choice:    strPtr("走向庄园"),
	})
	assert.Contains(t, got, "最后一回合")
	assert.Contains(t, got, "悬念")
}

func TestBuildUserPromptMissingChoiceUsesSentinel(t *testing.T) {
	got := story.BuildUserPrompt(game.TurnRequest{BookTitle: "第七天", Round: 1})
	assert.Contains(t, got, "未选择")
	assert.Contains(t, got, "历史：无。")
}
