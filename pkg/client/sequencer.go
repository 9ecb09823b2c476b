package client

import (
	"sync"
	"time"
)

// SequencerState tracks the staged reveal of one turn.
type SequencerState int

const (
	SeqIdle SequencerState = iota
	SeqRevealingText
	SeqRevealingOptions
	SeqSettled
)

// Delays are the presentational pacing knobs. Sentence applies after
// sentence-ending punctuation, Clause after clause punctuation, Rune
// otherwise.
type Delays struct {
	Lead       time.Duration
	Rune       time.Duration
	Clause     time.Duration
	Sentence   time.Duration
	OptionLead time.Duration
	Option     time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Lead:       60 * time.Millisecond,
		Rune:       35 * time.Millisecond,
		Clause:     120 * time.Millisecond,
		Sentence:   220 * time.Millisecond,
		OptionLead: 60 * time.Millisecond,
		Option:     120 * time.Millisecond,
	}
}

// SequencerEvents deliver reveal progress. Callbacks run outside the
// sequencer lock, on timer goroutines.
type SequencerEvents struct {
	OnText    func(shown string) // the currently revealed prefix
	OnOption  func(revealed int) // how many options are revealed
	OnSettled func()
}

// Sequencer reveals scene text rune by rune, then options one at a time.
// Each Present starts a new generation; timers from a superseded generation
// find their token stale and do nothing, so cancellation needs no timer
// bookkeeping beyond stopping the latest one.
type Sequencer struct {
	mu     sync.Mutex
	gen    uint64
	state  SequencerState
	text   []rune
	shown  int
	total  int // option count
	opened int // revealed options

	delays Delays
	events SequencerEvents
	timer  *time.Timer
}

func NewSequencer(delays Delays, events SequencerEvents) *Sequencer {
	return &Sequencer{delays: delays, events: events}
}

// Present starts revealing a new turn, superseding any reveal in progress.
func (s *Sequencer) Present(scene string, optionCount int) {
	s.mu.Lock()
	s.supersede()
	s.state = SeqRevealingText
	s.text = []rune(scene)
	s.shown = 0
	s.total = optionCount
	s.opened = 0
	gen := s.gen
	s.timer = time.AfterFunc(s.delays.Lead, func() { s.stepText(gen) })
	s.mu.Unlock()
}

// Cancel stops the reveal; no stray timer will fire against the old turn.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	s.supersede()
	s.state = SeqIdle
	s.text = nil
	s.shown = 0
	s.total = 0
	s.opened = 0
	s.mu.Unlock()
}

// Finish completes the current reveal immediately (all text and options
// shown), used when a failed turn should restore the previous scene.
func (s *Sequencer) Finish() {
	s.mu.Lock()
	s.supersede()
	s.shown = len(s.text)
	s.opened = s.total
	s.state = SeqSettled
	shown := string(s.text)
	opened := s.opened
	s.mu.Unlock()

	s.emitText(shown)
	s.emitOption(opened)
	s.emitSettled()
}

func (s *Sequencer) State() SequencerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CanActivate reports whether option index is revealed and the reveal has
// settled enough for interaction (text fully shown).
func (s *Sequencer) CanActivate(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return index >= 0 && index < s.opened
}

// supersede invalidates all scheduled steps. Callers hold the lock.
func (s *Sequencer) supersede() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sequencer) stepText(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != SeqRevealingText {
		s.mu.Unlock()
		return
	}

	if s.shown < len(s.text) {
		s.shown++
	}
	shown := string(s.text[:s.shown])
	done := s.shown >= len(s.text)

	if done {
		s.beginOptions(gen)
	} else {
		delay := runeDelay(s.delays, s.text[s.shown-1])
		s.timer = time.AfterFunc(delay, func() { s.stepText(gen) })
	}
	settled := s.state == SeqSettled
	s.mu.Unlock()

	s.emitText(shown)
	if settled {
		s.emitSettled()
	}
}

// beginOptions transitions out of text reveal. Callers hold the lock.
func (s *Sequencer) beginOptions(gen uint64) {
	if s.total == 0 {
		s.state = SeqSettled
		return
	}
	s.state = SeqRevealingOptions
	s.timer = time.AfterFunc(s.delays.OptionLead, func() { s.stepOption(gen) })
}

func (s *Sequencer) stepOption(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != SeqRevealingOptions {
		s.mu.Unlock()
		return
	}

	s.opened++
	opened := s.opened
	if s.opened >= s.total {
		s.state = SeqSettled
	} else {
		s.timer = time.AfterFunc(s.delays.Option, func() { s.stepOption(gen) })
	}
	settled := s.state == SeqSettled
	s.mu.Unlock()

	s.emitOption(opened)
	if settled {
		s.emitSettled()
	}
}

func runeDelay(d Delays, r rune) time.Duration {
	switch r {
	case '。', '！', '？', '!', '?':
		return d.Sentence
	case '，', ',', '；', ';':
		return d.Clause
	default:
		return d.Rune
	}
}

func (s *Sequencer) emitText(shown string) {
	if s.events.OnText != nil {
		s.events.OnText(shown)
	}
}

func (s *Sequencer) emitOption(revealed int) {
	if s.events.OnOption != nil {
		s.events.OnOption(revealed)
	}
}

func (s *Sequencer) emitSettled() {
	if s.events.OnSettled != nil {
		s.events.OnSettled()
	}
}
