package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/config"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/detector"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/generator"
)

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	err := writeResults(&buf, []generator.Result{
		{Text: "first prompt."},
		{Text: "[Generation failed]", Outcome: generator.Failed},
		{Text: "第三个。"},
	})
	require.NoError(t, err)
	assert.Equal(t, "first prompt.\n[Generation failed]\n第三个。\n", buf.String())
}

func TestWriteOutput_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	require.NoError(t, writeOutput(path, []generator.Result{{Text: "a"}, {Text: "b"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
}

func TestResolveLanguage(t *testing.T) {
	det := detector.New()

	lang, err := resolveLanguage("zh", nil, det)
	require.NoError(t, err)
	assert.Equal(t, internal.Chinese, lang)

	_, err = resolveLanguage("de", nil, det)
	assert.Error(t, err)

	lang, err = resolveLanguage("auto", []string{
		"一条巨龙在暴风雨中盘旋于灯塔之上",
		"古老的图书馆里漂浮着蜡烛",
		"A knight resting beside a quiet river",
	}, det)
	require.NoError(t, err)
	assert.Equal(t, internal.Chinese, lang)

	lang, err = resolveLanguage("AUTO", []string{"12345"}, det)
	require.NoError(t, err)
	assert.Equal(t, internal.English, lang)
}

func TestReadSeeds(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(txt, []byte("a dragon\n\n a castle \n"), 0o644))
	seeds, err := readSeeds(txt, -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a dragon", "a castle"}, seeds)

	csvPath := filepath.Join(dir, "seeds.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,prompt\n1,a dragon\n2,a castle\n"), 0o644))
	seeds, err = readSeeds(csvPath, 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a dragon", "a castle"}, seeds)

	_, err = readSeeds(filepath.Join(dir, "missing.txt"), -1, false)
	assert.Error(t, err)
}

func TestIsAuto(t *testing.T) {
	for _, name := range []string{"auto", "AUTO", "Auto", " auto "} {
		assert.True(t, isAuto(name), name)
	}
	for _, name := range []string{"en", "zh", "", "automatic"} {
		assert.False(t, isAuto(name), name)
	}
}

func TestHistoryCommands_UseCommandContext(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{DB: filepath.Join(t.TempDir(), "history.db")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	historyListCmd.SetContext(ctx)
	t.Cleanup(func() { historyListCmd.SetContext(context.Background()) })

	err := historyListCmd.RunE(historyListCmd, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
