package game

// TotalRounds is the fixed length of a playthrough. The story prompt, the
// final-turn cliffhanger rule, and the client's victory derivation all key
// off this constant.
const TotalRounds = 5

// Option is a single labeled choice presented to the player.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// HistoryEntry records one past choice. Entries are append-only and ordered
// by round ascending.
type HistoryEntry struct {
	Round int    `json:"round"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// TurnRequest is the validated inbound payload for one turn.
// Round counts completed turns; Choice is nil exactly on the opening turn.
type TurnRequest struct {
	BookTitle       string         `json:"bookTitle"`
	Round           int            `json:"round"`
	Choice          *string        `json:"choice"`
	History         []HistoryEntry `json:"history"`
	ProtagonistName *string        `json:"protagonistName"`
}

// StoryPayload is the JSON object the story model must produce, pre-normalization.
type StoryPayload struct {
	ImagePrompt      string   `json:"image_prompt"`
	CharacterName    string   `json:"character_name"`
	SceneDescription string   `json:"scene_description"`
	Options          []Option `json:"options"`
	IsGameOver       bool     `json:"is_game_over"`
}

// TurnResponse is the unit returned to the caller; immutable once assembled.
type TurnResponse struct {
	CharacterName    string   `json:"characterName"`
	SceneDescription string   `json:"sceneDescription"`
	ImagePrompt      string   `json:"imagePrompt"`
	ImageURL         string   `json:"imageUrl"`
	Options          []Option `json:"options"`
	IsGameOver       bool     `json:"isGameOver"`
}
