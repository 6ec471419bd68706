package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/talkthru/internal/language"
)

func TestResolveStateDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdg)
	dir, err := resolveStateDir()
	require.NoError(t, err)
	require.Equal(t, xdg, dir)

	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)
	dir, err = resolveStateDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state"), dir)
}

func TestCreateDebugFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	file, err := createDebugFile("speechrpc", "jsonl")
	require.NoError(t, err)
	path := file.Name()
	require.NoError(t, file.Close())

	require.Contains(t, path, filepath.Join("talkthru", "debug"))
	require.Contains(t, filepath.Base(path), "speechrpc-")
	require.Equal(t, ".jsonl", filepath.Ext(path))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestWritePCM16WAV(t *testing.T) {
	var buf bytes.Buffer
	pcm := []byte{0x01, 0x00, 0xFF, 0x7F}
	require.NoError(t, writePCM16WAV(&buf, pcm, 16000, 0))

	data := buf.Bytes()
	require.Len(t, data, 44+len(pcm))
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Equal(t, "data", string(data[36:40]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(data[40:44]))
	require.Equal(t, pcm, data[44:])
}

func TestDebugDumpWritesWAVPerTurn(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	tr := newTestTranscriber(newFakeSource(make([]byte, 64)), &fakeRecognizer{finish: Recognition{Segments: []string{"hello"}}})
	tr.opts.DebugDump = true

	c, err := tr.Begin(context.Background(), language.MustLookup("en"))
	require.NoError(t, err)
	require.NoError(t, c.End(context.Background()))
	res, _ := receive(t, c)
	require.Equal(t, "Hello", res.Text)

	matches, err := filepath.Glob(filepath.Join(state, "talkthru", "debug", "audio-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
