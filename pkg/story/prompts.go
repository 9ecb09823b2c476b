package story

import (
	"fmt"
	"strings"

	"github.com/Javier1112/BookGame/pkg/game"
)

// systemPrompt encodes the game-master rules: fixed round count, literary
// tone, final-round cliffhanger, character consistency, motivated choices,
// and a single JSON object with an exact key set and order.
var systemPrompt = fmt.Sprintf(`你是"SHNU Playbrary"的游戏主持人（Game Master）。
规则：
1）游戏总共且必须严格为 %[1]d 回合。
2）叙事与文风要尽量贴近原书作者的文学风格（故事输出为中文）。
3）第 %[1]d 回合必须以"巨大的悬念/危机"结束。
4）character_name 一旦确立，后续回合必须保持一致；若因剧情需要更名/身份揭露，必须在 scene_description 中说明原因与变化。
5）scene_description 末尾要自然引出抉择点（危机/诱因/信息差），为 A/B/C 提供动机。
6）options 必须为 3 个互斥且可执行的具体动作，使用动词开头，每条不超过 15 字；禁止"继续/随便/不知道/以上都行/随机/跳过"等空泛选项出现；避免信息重复。
7）你必须且只能输出一个 JSON 对象（不要 markdown、不要多余说明、不要代码块）。
8）JSON 对象必须且只能包含以下键（严格一致），并且键顺序必须为：
   - image_prompt: string（允许中文；只写画面视觉元素（人物/场景/动作/构图/光影/风格）；不写规则/限制/否定提示词，如"不要/禁止/无文字/不包含"等）
   - character_name: string（中文）
   - scene_description: string（中文）
   - options: 长度为 3 的数组，每项为 {label: 'A'|'B'|'C', text: string（中文）}；如果 is_game_over=true 则可以返回 []
   - is_game_over: boolean
9）不得包含任何其它键。`, game.TotalRounds)

// repairSystemPrompt drives the one-shot repair pass: a strict structural
// reformatter whose sole job is producing the exact key set.
var repairSystemPrompt = fmt.Sprintf(`你是一个严格的 JSON 结构转换器。
你必须且只能返回一个 JSON 对象，并且键名必须严格为：image_prompt、character_name、scene_description、options、is_game_over（顺序必须保持一致）。
不得有任何其它键；不要 markdown；不要多余文字。
scene_description 末尾要自然引出抉择点（危机/诱因/信息差），为 A/B/C 提供动机。
options 必须为 3 个互斥且可执行的具体动作，使用动词开头，每条不超过 15 字；禁止"继续/随便/不知道/以上都行/随机/跳过"等空泛选项；除非 is_game_over=true，此时 options 可以为 []。
如果输入缺少 options 或 options 不合法，请根据场景内容补全并生成 3 个合理选项。
image_prompt 允许中文，包含视觉描述。
总回合数为 %d。`, game.TotalRounds)

const (
	hardenedNoTools  = "\n\nIMPORTANT: Do not call any tools. Reply with a single JSON object only."
	hardenedJSONOnly = "\n\nIMPORTANT: Reply with ONLY a JSON object, no extra text."
)

// BuildUserPrompt flattens the request into the per-turn user message.
func BuildUserPrompt(req game.TurnRequest) string {
	if req.Round == 0 {
		return fmt.Sprintf(
			"请根据书籍《%s》开启一场角色扮演且沉浸式的互动故事。现在是第 1 回合（共 %d 回合）。请设定主角，并描写开场场景。",
			req.BookTitle, game.TotalRounds)
	}

	choice := "未选择"
	if req.Choice != nil && strings.TrimSpace(*req.Choice) != "" {
		choice = *req.Choice
	}

	var b strings.Builder
	fmt.Fprintf(&b, "我们正在进行一场基于《%s》的互动故事游戏。现在是第 %d 回合（共 %d 回合）。",
		req.BookTitle, req.Round+1, game.TotalRounds)
	if req.ProtagonistName != nil && strings.TrimSpace(*req.ProtagonistName) != "" {
		fmt.Fprintf(&b, "主角是%s。", strings.TrimSpace(*req.ProtagonistName))
	}
	fmt.Fprintf(&b, "用户选择了：“%s”。请继续推进剧情。历史：%s。", choice, flattenHistory(req.History))
	if req.Round >= game.TotalRounds-1 {
		b.WriteString("这是最后一回合：请以巨大的悬念/危机收束（巨大反转或迫在眉睫的危机），但不要给出最终结局。")
	}
	return b.String()
}

// flattenHistory renders prior choices as one line, or a sentinel when empty.
func flattenHistory(history []game.HistoryEntry) string {
	if len(history) == 0 {
		return "无"
	}

	parts := make([]string, 0, len(history))
	for _, entry := range history {
		label := entry.Label
		if label == "" {
			label = "?"
		}
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			text = "（无）"
		}
		parts = append(parts, fmt.Sprintf("第%d回合｜选择：%s｜结果：%s", entry.Round+1, label, text))
	}
	return strings.Join(parts, "；")
}
