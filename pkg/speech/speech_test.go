package speech

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func TestDetect_ExplicitCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "spoken.txt")
	script := writeScript(t, dir, "fake-say", `printf '%s|%s' "$1" "$2" > `+out)

	s, err := Detect(script+" --rate", "en")
	require.NoError(t, err)
	require.Equal(t, []string{"--rate"}, s.Args)

	require.NoError(t, s.Speak(context.Background(), " hello there "))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "--rate|hello there", string(b))

	require.NoError(t, s.Speak(context.Background(), "   "))
}

func TestDetect_SearchesPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	dir := t.TempDir()
	writeScript(t, dir, "espeak", "exit 0")
	t.Setenv("PATH", dir)

	s, err := Detect("", "en-US")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "espeak"), s.Path)
	require.Equal(t, []string{"-v", "en-US"}, s.Args)

	t.Setenv("PATH", t.TempDir())
	_, err = Detect("", "")
	require.True(t, errors.Is(err, ErrUnavailable))

	_, err = Detect("definitely-not-installed", "")
	require.Error(t, err)
}

func TestSpeak_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "broken", "echo nope >&2; exit 3")
	s := &CommandSpeaker{Path: script}
	err := s.Speak(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
}
