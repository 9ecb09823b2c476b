package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Javier1112/BookGame/pkg/books"
	"github.com/Javier1112/BookGame/pkg/game"
)

// DebounceInterval is the minimum spacing between accepted user actions.
const DebounceInterval = 800 * time.Millisecond

// BusyMessage is surfaced when a turn fails on upstream throttling.
const BusyMessage = "我们正在为您生成精彩故事，请稍等片刻再尝试。"

// Fetcher abstracts the turn API for the controller.
type Fetcher interface {
	PlayTurn(ctx context.Context, req game.TurnRequest) (*game.TurnResponse, error)
}

// GameState is the client-side view of the playthrough, rebuilt wholesale on
// each successful turn.
type GameState struct {
	Round            int
	BookTitle        string
	CharacterName    string
	SceneDescription string
	ImagePrompt      string
	ImageURL         string
	Options          []game.Option
	History          []game.HistoryEntry
	IsGameOver       bool
	IsVictory        bool
	LibraryLink      string
}

// Events are the controller's outputs. Callbacks run outside the controller
// lock and may call back into it.
type Events struct {
	OnTurn  func(GameState)
	OnBusy  func(message string)
	OnError func(err error)
}

// Controller issues one turn request at a time: user actions are debounced,
// overlapping requests are refused, and responses are applied only when their
// request token is still current, so a slow earlier turn can never clobber
// the result of a newer one.
type Controller struct {
	api    Fetcher
	events Events

	mu         sync.Mutex
	token      uint64
	inFlight   bool
	lastAction time.Time
	state      *GameState

	debounce time.Duration
	now      func() time.Time
}

func NewController(api Fetcher, events Events) *Controller {
	return &Controller{
		api:      api,
		events:   events,
		debounce: DebounceInterval,
		now:      time.Now,
	}
}

// Start begins a new playthrough. Returns false when the action was refused
// (already in flight, or within the debounce window).
func (c *Controller) Start(ctx context.Context, bookTitle string) bool {
	bookTitle = strings.TrimSpace(bookTitle)
	if bookTitle == "" {
		return false
	}
	return c.executeTurn(ctx, game.TurnRequest{
		BookTitle: bookTitle,
		Round:     0,
		History:   []game.HistoryEntry{},
	})
}

// Choose advances the story with the given option.
func (c *Controller) Choose(ctx context.Context, option game.Option) bool {
	c.mu.Lock()
	state := c.state
	if state == nil || state.IsGameOver {
		c.mu.Unlock()
		return false
	}
	history := append(append([]game.HistoryEntry{}, state.History...), game.HistoryEntry{
		Round: state.Round,
		Label: option.Label,
		Text:  option.Text,
	})
	req := game.TurnRequest{
		BookTitle:       state.BookTitle,
		Round:           state.Round,
		Choice:          &option.Text,
		History:         history,
		ProtagonistName: &state.CharacterName,
	}
	c.mu.Unlock()

	return c.executeTurn(ctx, req)
}

// Reset abandons the current playthrough. Any in-flight response becomes
// stale and will be discarded on arrival.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.token++
	c.state = nil
	c.inFlight = false
	c.mu.Unlock()
}

// State returns a copy of the latest applied game state, or nil before the
// first successful turn.
func (c *Controller) State() *GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	copied := *c.state
	return &copied
}

func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Controller) executeTurn(ctx context.Context, req game.TurnRequest) bool {
	c.mu.Lock()
	now := c.now()
	if c.inFlight || now.Sub(c.lastAction) < c.debounce {
		c.mu.Unlock()
		return false
	}
	c.token++
	token := c.token
	c.inFlight = true
	c.lastAction = now
	c.mu.Unlock()

	go c.runTurn(ctx, req, token)
	return true
}

func (c *Controller) runTurn(ctx context.Context, req game.TurnRequest, token uint64) {
	resp, err := c.api.PlayTurn(ctx, req)

	c.mu.Lock()
	if token != c.token {
		// Stale: a newer request or a reset superseded this turn. The
		// in-flight flag belongs to the newer token, leave it alone.
		c.mu.Unlock()
		return
	}
	c.inFlight = false

	if err != nil {
		c.mu.Unlock()
		c.emitFailure(err)
		return
	}

	state := deriveState(req, resp)
	c.state = &state
	c.mu.Unlock()

	if c.events.OnTurn != nil {
		c.events.OnTurn(state)
	}
}

// deriveState applies the victory rule: reaching the final round without an
// upstream game-over signal is a victory; the upstream signal always
// terminates and always wins over the round count.
func deriveState(req game.TurnRequest, resp *game.TurnResponse) GameState {
	nextRound := req.Round + 1
	finalRound := nextRound >= game.TotalRounds
	return GameState{
		Round:            nextRound,
		BookTitle:        req.BookTitle,
		CharacterName:    resp.CharacterName,
		SceneDescription: resp.SceneDescription,
		ImagePrompt:      resp.ImagePrompt,
		ImageURL:         resp.ImageURL,
		Options:          resp.Options,
		History:          req.History,
		IsGameOver:       resp.IsGameOver || finalRound,
		IsVictory:        finalRound && !resp.IsGameOver,
		LibraryLink:      books.LibraryLink(req.BookTitle),
	}
}

func (c *Controller) emitFailure(err error) {
	if isThrottledFailure(err) {
		if c.events.OnBusy != nil {
			c.events.OnBusy(BusyMessage)
		}
		return
	}
	if c.events.OnError != nil {
		c.events.OnError(err)
	}
}

// isThrottledFailure recognizes a throttled turn either by status code or by
// the provider's message leaking through the server's plain-text reason.
func isThrottledFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "Too Many Requests") ||
		strings.Contains(msg, "请求过多")
}
