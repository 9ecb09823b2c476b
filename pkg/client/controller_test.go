package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Javier1112/BookGame/pkg/game"
)

type fakeAPI struct {
	mu    sync.Mutex
	reqs  []game.TurnRequest
	resp  *game.TurnResponse
	err   error
	block chan struct{} // when non-nil, PlayTurn waits on it
}

func (f *fakeAPI) PlayTurn(_ context.Context, req game.TurnRequest) (*game.TurnResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.resp, f.err
}

func (f *fakeAPI) requests() []game.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.TurnRequest{}, f.reqs...)
}

func turnResponse(gameOver bool) *game.TurnResponse {
	return &game.TurnResponse{
		CharacterName:    "奥雷里亚诺",
		SceneDescription: "他第一次见到冰块。",
		ImagePrompt:      "马孔多小镇",
		ImageURL:         "https://img.example/a.png",
		Options: []game.Option{
			{Label: "A", Text: "伸手触摸冰块"},
			{Label: "B", Text: "询问吉卜赛人"},
			{Label: "C", Text: "退回人群之后"},
		},
		IsGameOver: gameOver,
	}
}

// harness wires a controller with zero debounce and buffered event channels.
func harness(api Fetcher) (*Controller, chan GameState, chan string, chan error) {
	turns := make(chan GameState, 4)
	busy := make(chan string, 4)
	fails := make(chan error, 4)
	ctrl := NewController(api, Events{
		OnTurn:  func(st GameState) { turns <- st },
		OnBusy:  func(msg string) { busy <- msg },
		OnError: func(err error) { fails <- err },
	})
	ctrl.debounce = 0
	return ctrl, turns, busy, fails
}

func waitTurn(t *testing.T, turns chan GameState) GameState {
	t.Helper()
	select {
	case st := <-turns:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("no turn arrived")
		return GameState{}
	}
}

func TestControllerStartAppliesFirstTurn(t *testing.T) {
	api := &fakeAPI{resp: turnResponse(false)}
	ctrl, turns, _, _ := harness(api)

	require.True(t, ctrl.Start(context.Background(), "百年孤独"))
	st := waitTurn(t, turns)

	assert.Equal(t, 1, st.Round)
	assert.Equal(t, "百年孤独", st.BookTitle)
	assert.Equal(t, "奥雷里亚诺", st.CharacterName)
	assert.False(t, st.IsGameOver)
	assert.False(t, st.IsVictory)
	assert.NotEmpty(t, st.LibraryLink)
	assert.Empty(t, st.History)

	reqs := api.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 0, reqs[0].Round)
	assert.Nil(t, reqs[0].Choice)
}

func TestControllerStartRefusesEmptyTitle(t *testing.T) {
	ctrl, _, _, _ := harness(&fakeAPI{resp: turnResponse(false)})
	assert.False(t, ctrl.Start(context.Background(), "   "))
}

func TestControllerChooseCarriesHistoryAndProtagonist(t *testing.T) {
	api := &fakeAPI{resp: turnResponse(false)}
	ctrl, turns, _, _ := harness(api)

	require.True(t, ctrl.Start(context.Background(), "百年孤独"))
	st := waitTurn(t, turns)

	require.True(t, ctrl.Choose(context.Background(), st.Options[0]))
	waitTurn(t, turns)

	reqs := api.requests()
	require.Len(t, reqs, 2)
	second := reqs[1]
	assert.Equal(t, 1, second.Round)
	require.NotNil(t, second.Choice)
	assert.Equal(t, "伸手触摸冰块", *second.Choice)
	require.NotNil(t, second.ProtagonistName)
	assert.Equal(t, "奥雷里亚诺", *second.ProtagonistName)
	require.Len(t, second.History, 1)
	assert.Equal(t, game.HistoryEntry{Round: 1, Label: "A", Text: "伸手触摸冰块"}, second.History[0])
}

func TestControllerRefusesOverlappingActions(t *testing.T) {
	api := &fakeAPI{resp: turnResponse(false), block: make(chan struct{})}
	ctrl, turns, _, _ := harness(api)

	require.True(t, ctrl.Start(context.Background(), "百年孤独"))
	assert.False(t, ctrl.Start(context.Background(), "百年孤独"), "second action while in flight")

	close(api.block)
	waitTurn(t, turns)
	assert.Len(t, api.requests(), 1)
}

func TestControllerDebouncesRapidActions(t *testing.T) {
	api := &fakeAPI{resp: turnResponse(false)}
	ctrl, turns, _, _ := harness(api)
	ctrl.debounce = DebounceInterval

	current := time.Now()
	ctrl.now = func() time.Time { return current }

	require.True(t, ctrl.Start(context.Background(), "百年孤独"))
	waitTurn(t, turns)

	// Within the debounce window: refused even though nothing is in flight.
	current = current.Add(DebounceInterval / 2)
	st := ctrl.State()
	require.NotNil(t, st)
	assert.False(t, ctrl.Choose(context.Background(), st.Options[0]))

	// Past the window: accepted.
	current = current.Add(DebounceInterval)
	assert.True(t, ctrl.Choose(context.Background(), st.Options[0]))
	waitTurn(t, turns)
}

func TestControllerDiscardsStaleResponseAfterReset(t *testing.T) {
	api := &fakeAPI{resp: turnResponse(false), block: make(chan struct{})}
	ctrl, turns, _, fails := harness(api)

	require.True(t, ctrl.Start(context.Background(), "百年孤独"))
	ctrl.Reset()
	close(api.block)

	select {
	case st := <-turns:
		t.Fatalf("stale turn was applied: %+v", st)
	case err := <-fails:
		t.Fatalf("stale turn surfaced an error: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Nil(t, ctrl.State())
	assert.False(t, ctrl.InFlight())
}

func TestControllerVictoryOnFinalRound(t *testing.T) {
	api := &fakeAPI{resp: turnResponse(false)}
	ctrl, turns, _, _ := harness(api)

	// Hand-build the state of round TotalRounds-1 and choose from it.
	ctrl.state = &GameState{
		Round:     game.TotalRounds - 1,
		BookTitle: "百年孤独",
		Options:   turnResponse(false).Options,
	}
	require.True(t, ctrl.Choose(context.Background(), ctrl.state.Options[1]))
	st := waitTurn(t, turns)

	assert.Equal(t, game.TotalRounds, st.Round)
	assert.True(t, st.IsGameOver)
	assert.True(t, st.IsVictory, "reaching the final round without an upstream game-over is a victory")
}

func TestControllerUpstreamGameOverBeatsRoundCount(t *testing.T) {
	api := &fakeAPI{resp: turnResponse(true)}
	ctrl, turns, _, _ := harness(api)

	ctrl.state = &GameState{
		Round:     2,
		BookTitle: "百年孤独",
		Options:   turnResponse(false).Options,
	}
	require.True(t, ctrl.Choose(context.Background(), ctrl.state.Options[0]))
	st := waitTurn(t, turns)

	assert.True(t, st.IsGameOver)
	assert.False(t, st.IsVictory, "an upstream game-over is never a victory")

	// No further choices once the game is over.
	assert.False(t, ctrl.Choose(context.Background(), st.Options[0]))
}

func TestControllerThrottledFailureEmitsBusy(t *testing.T) {
	api := &fakeAPI{err: &StatusError{Status: 429, Message: "too many"}}
	ctrl, _, busy, fails := harness(api)

	require.True(t, ctrl.Start(context.Background(), "百年孤独"))
	select {
	case msg := <-busy:
		assert.Equal(t, BusyMessage, msg)
	case err := <-fails:
		t.Fatalf("throttle surfaced as a plain error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no busy event arrived")
	}
	assert.False(t, ctrl.InFlight())
}

func TestControllerOtherFailureEmitsError(t *testing.T) {
	api := &fakeAPI{err: &StatusError{Status: 500, Message: "boom"}}
	ctrl, _, busy, fails := harness(api)

	require.True(t, ctrl.Start(context.Background(), "百年孤独"))
	select {
	case err := <-fails:
		assert.Contains(t, err.Error(), "boom")
	case <-busy:
		t.Fatal("plain failure surfaced as busy")
	case <-time.After(2 * time.Second):
		t.Fatal("no error event arrived")
	}
	assert.Nil(t, ctrl.State(), "failed turn must not touch state")
}
