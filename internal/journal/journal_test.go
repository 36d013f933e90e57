package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"drivescore/internal/score"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, file string) []map[string]any {
	t.Helper()
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestFileJournal_Observer(t *testing.T) {
	file := filepath.Join(t.TempDir(), "journal.jsonl")
	j := NewFileJournal(file, 1, 1)

	at := time.Date(2024, 5, 17, 9, 30, 15, 0, time.UTC)
	j.Observer("s-1")(score.EventLogEntry{
		Category:    score.CategoryScenario,
		Subject:     "园区",
		Value:       "评分5",
		DeltaPoints: 10,
		Time:        at,
	})
	require.NoError(t, j.Close())

	lines := readLines(t, file)
	require.Len(t, lines, 1)
	assert.Equal(t, map[string]any{
		"time":     "2024-05-17 09:30:15",
		"session":  "s-1",
		"category": "综合场景",
		"subject":  "园区",
		"value":    "评分5",
		"delta":    float64(10),
	}, lines[0])
}

func TestFileJournal_Observer_WiresAggregator(t *testing.T) {
	file := filepath.Join(t.TempDir(), "journal.jsonl")
	j := NewFileJournal(file, 1, 1)

	a, err := score.NewAggregator(score.DefaultProfile(), score.WithObserver(j.Observer("run-7")))
	require.NoError(t, err)

	_, err = a.RecordScenarioRating("闸机", 1)
	require.NoError(t, err)
	_, err = a.AdjustBehaviorCount("顿挫", 2)
	require.NoError(t, err)
	_, err = a.AdjustBonusCount(score.BonusPenalty, 1)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	lines := readLines(t, file)
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, "run-7", l["session"])
	}
	assert.Equal(t, float64(-10), lines[0]["delta"])
	assert.Equal(t, float64(-4), lines[1]["delta"])
	assert.Equal(t, "惩罚", lines[2]["subject"])
}

func TestFileJournal_Observer_SeparatesSessions(t *testing.T) {
	file := filepath.Join(t.TempDir(), "journal.jsonl")
	j := NewFileJournal(file, 1, 1)

	first, second := j.Observer("a"), j.Observer("b")
	first(score.EventLogEntry{Subject: "园区"})
	second(score.EventLogEntry{Subject: "闸机"})
	first(score.EventLogEntry{Subject: "坡道"})
	require.NoError(t, j.Close())

	lines := readLines(t, file)
	require.Len(t, lines, 3)
	assert.Equal(t, []any{"a", "b", "a"}, []any{lines[0]["session"], lines[1]["session"], lines[2]["session"]})
}

func TestLineHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLineHandler(&buf)).With("component", "journal")

	logger.Info("ignored message", "key", "value")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "journal", line["component"])
	assert.Equal(t, "value", line["key"])
	assert.NotContains(t, line, "level")
	assert.NotContains(t, line, "msg")
}

func TestNop(t *testing.T) {
	var j Journal = Nop{}
	assert.Nil(t, j.Observer("s"))
	assert.NoError(t, j.Close())
}
