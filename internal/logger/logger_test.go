package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu   sync.Mutex
	msgs []string
}

func (h *recordingHub) Broadcast(msgType string, _ any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msgType)
	return nil
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []int{3, 4, 5}, rb.GetAll())

	rb.Clear()
	assert.Empty(t, rb.GetAll())
	assert.Zero(t, rb.Len())

	rb.Push(9)
	assert.Equal(t, []int{9}, rb.GetAll())
}

func TestRingBuffer_CopiesAndMinimumCapacity(t *testing.T) {
	rb := NewRingBuffer[string](0)
	rb.Push("a")
	rb.Push("b")

	got := rb.GetAll()
	assert.Equal(t, []string{"b"}, got)

	got[0] = "mutated"
	assert.Equal(t, []string{"b"}, rb.GetAll())
	assert.NotNil(t, NewRingBuffer[int](4).GetAll())
}

func TestLogger_Streaming(t *testing.T) {
	var console bytes.Buffer
	log := New(Config{
		Level:           "debug",
		Format:          "json",
		Output:          &console,
		EnableStreaming: true,
		BufferSize:      2,
	})

	hub := &recordingHub{}
	log.Info().Msg("before hub")
	log.SetBroadcastHub(hub)
	scanLog := log.Logger.With().Str("component", "scan").Logger()
	scanLog.Info().Int("items", 3).Msg("Scan complete")

	recent := log.GetRecentLogs()
	require.Len(t, recent, 2)
	assert.Equal(t, "before hub", recent[0].Message)
	assert.Equal(t, "scan", recent[1].Component)
	assert.Equal(t, "info", recent[1].Level)
	assert.Equal(t, float64(3), recent[1].Fields["items"])
	assert.Equal(t, []string{"logs:entry"}, hub.msgs)
	assert.Contains(t, console.String(), "Scan complete")
	assert.Empty(t, log.GetLogFilePath())
}

func TestLogger_File(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Level: "info", Format: "json", Path: dir, Output: &bytes.Buffer{}})

	log.Info().Msg("to file")
	require.NoError(t, log.Close())

	assert.Equal(t, filepath.Join(dir, LogFileName), log.GetLogFilePath())
	data, err := os.ReadFile(log.GetLogFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Nil(t, log.GetRecentLogs())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARNING "))
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}
