package engine

import (
	"context"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errRevealCanceled = errors.New("reveal canceled")

// reveal is the single in-progress incremental render of a reply. gen is
// compared against every tick so ticks of an abandoned reveal are no-ops.
type reveal struct {
	gen     uint64
	entryID string
	runes   []rune
	shown   int
	timer   Timer
}

func (e *Engine) startReveal(entryID, text string) {
	e.revealGen++
	r := &reveal{
		gen:     e.revealGen,
		entryID: entryID,
		runes:   []rune(text),
	}
	e.reveal = r
	e.appendEntry(events.Entry{
		ID:        entryID,
		Role:      chat.RoleAssistant,
		Kind:      events.EntryKindMessage,
		Revealing: true,
	})
	if len(r.runes) == 0 {
		e.finishReveal()
		return
	}
	e.scheduleTick(r)
}

func (e *Engine) scheduleTick(r *reveal) {
	gen := r.gen
	r.timer = e.scheduler.AfterFunc(e.revealInterval, func() {
		e.post(func() { e.tick(gen) })
	})
}

func (e *Engine) tick(gen uint64) {
	r := e.reveal
	if r == nil || r.gen != gen {
		log.Debug().Str("component", "engine").Uint64("gen", gen).Msg("dropping stale reveal tick")
		return
	}
	i := e.findEntry(r.entryID)
	if i < 0 {
		e.reveal = nil
		return
	}
	r.shown++
	e.transcript[i].Content = string(r.runes[:r.shown])
	if r.shown >= len(r.runes) {
		e.finishReveal()
		return
	}
	e.updateEntry(i, true)
	e.scheduleTick(r)
}

// flushReveal shows the rest of the running reveal at once and finalizes it.
func (e *Engine) flushReveal() {
	r := e.reveal
	if r == nil {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.shown = len(r.runes)
	if i := e.findEntry(r.entryID); i >= 0 {
		e.transcript[i].Content = string(r.runes)
	}
	e.finishReveal()
}

func (e *Engine) finishReveal() {
	r := e.reveal
	e.reveal = nil
	i := e.findEntry(r.entryID)
	if i < 0 {
		return
	}
	en := &e.transcript[i]
	en.Revealing = false
	en.Timestamp = e.now()
	en.Speakable = true
	e.updateEntry(i, true)

	e.emit(events.NewTurnSettled(e.metadata(), r.entryID, nil))
	e.commit()
	e.refreshHistory("")
	if e.autoSpeak && e.speaker != nil {
		e.speakText(en.Content)
	}
}

// cancelReveal abandons the running reveal without finishing its entry.
func (e *Engine) cancelReveal() {
	r := e.reveal
	if r == nil {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	e.reveal = nil
	e.revealGen++
	log.Debug().Str("component", "engine").Str("entry_id", r.entryID).Msg("reveal canceled")
	e.emit(events.NewTurnSettled(e.metadata(), r.entryID, errRevealCanceled))
}

func (e *Engine) speakText(text string) {
	speaker := e.speaker
	e.spawn(func(ctx context.Context) func() {
		if err := speaker.Speak(ctx, text); err != nil {
			log.Warn().Err(err).Str("component", "engine").Msg("read aloud failed")
			return func() { e.notice(events.NoticeError, "Read aloud failed") }
		}
		return nil
	})
}
