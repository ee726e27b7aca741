package speech

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned by Detect when no synthesizer is installed.
var ErrUnavailable = errors.New("no speech synthesizer found")

// CommandSpeaker pipes text through an OS speech synthesizer.
type CommandSpeaker struct {
	Path string
	// Args are passed before the text. The text is always the last argument.
	Args []string
}

// Known synthesizers, tried in order. lang is substituted into the voice flag
// where the tool supports one.
var candidates = []struct {
	name string
	args func(lang string) []string
}{
	{"say", func(string) []string { return nil }},
	{"espeak-ng", func(lang string) []string { return voiceArgs("-v", lang) }},
	{"espeak", func(lang string) []string { return voiceArgs("-v", lang) }},
	{"spd-say", func(lang string) []string { return append([]string{"--wait"}, voiceArgs("-l", lang)...) }},
}

func voiceArgs(flag, lang string) []string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return nil
	}
	return []string{flag, lang}
}

// Detect returns a speaker for command (a binary name or path) or, when
// command is empty, the first known synthesizer found on PATH.
func Detect(command, lang string) (*CommandSpeaker, error) {
	if command = strings.TrimSpace(command); command != "" {
		fields := strings.Fields(command)
		p, err := exec.LookPath(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "looking for `%s`", fields[0])
		}
		return &CommandSpeaker{Path: p, Args: fields[1:]}, nil
	}
	for _, c := range candidates {
		p, err := exec.LookPath(c.name)
		if err != nil {
			continue
		}
		log.Debug().Str("component", "speech").Str("command", p).Msg("using speech synthesizer")
		return &CommandSpeaker{Path: p, Args: c.args(lang)}, nil
	}
	return nil, ErrUnavailable
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	args := append(append([]string(nil), s.Args...), text)
	out, err := exec.CommandContext(ctx, s.Path, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "running `%s`: %s", s.Path, strings.TrimSpace(string(out)))
	}
	return nil
}
