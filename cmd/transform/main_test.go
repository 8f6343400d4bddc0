package main

import (
	"bytes"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transform "github.com/filestack/transformations-ui-ios-sub001"
	"github.com/filestack/transformations-ui-ios-sub001/recipe"
)

func TestConfig_RoundTrip(t *testing.T) {
	conf := defaultConfig()
	conf.Workers = 3
	conf.LogLevel = "debug"
	conf.Store = "/tmp/history.db"

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, conf))

	path := filepath.Join(t.TempDir(), configFile)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, conf, got)
	assert.Equal(t, slog.LevelDebug, got.level())
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)
	require.NoError(t, os.WriteFile(path, []byte("Quality = 70\n"), 0o600))

	got, err := readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 70, got.Quality)
	assert.Equal(t, transform.DefaultHistoryLimit, got.HistoryLimit)
	assert.Equal(t, slog.LevelWarn, got.level())
}

func TestConfig_Missing(t *testing.T) {
	_, err := readConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err, "an explicit file must exist")

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	got, err := readConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), got)
}

func TestConfig_Level(t *testing.T) {
	assert.Equal(t, slog.LevelError, config{LogLevel: "error"}.level())
	assert.Equal(t, slog.LevelWarn, config{LogLevel: "loud"}.level())
}

const testRecipe = `
stages:
  - id: frame
    kind: border
    params: {width: 2, color: "#ff0000"}
edits:
  - node: frame
    set: {width: 4}
    commit: true
`

func TestApp_ProcessAndResume(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	require.NoError(t, transform.EncodeFile(in, transform.Solid(6, 4, color.White), 0))

	conf := defaultConfig()
	conf.Workers = 1
	conf.Store = filepath.Join(dir, "history.db")

	a, err := newApp(testContext(t), conf)
	require.NoError(t, err)
	defer a.close()
	a.recipe, err = recipe.Parse([]byte(testRecipe))
	require.NoError(t, err)

	out := filepath.Join(dir, "out.png")
	require.NoError(t, a.process(testContext(t), in, out, "sample"))

	img, err := transform.DecodeFile(out)
	require.NoError(t, err)
	assert.Equal(t, 14, img.Width())
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, img.At(0, 0))

	doc, err := a.store.Load(testContext(t), "sample")
	require.NoError(t, err)
	assert.Len(t, doc.Layout, 1)
	assert.Equal(t, 1, doc.History.Cursor)

	// a stored session wins over the recipe
	a.recipe = nil
	again := filepath.Join(dir, "again.png")
	require.NoError(t, a.process(testContext(t), in, again, "sample"))
	img2, err := transform.DecodeFile(again)
	require.NoError(t, err)
	assert.True(t, transform.Equal(img, img2))

	var list bytes.Buffer
	require.NoError(t, a.list(testContext(t), &list))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(list.String()), "sample"))

	var metrics bytes.Buffer
	a.printMetrics(&metrics)
	assert.Contains(t, metrics.String(), "transform_kernel_computes_total{kind=border}")
}

func TestApp_ListWithoutStore(t *testing.T) {
	a, err := newApp(testContext(t), defaultConfig())
	require.NoError(t, err)
	defer a.close()

	assert.Error(t, a.list(testContext(t), &bytes.Buffer{}))
}

func TestApp_MissingCascade(t *testing.T) {
	conf := defaultConfig()
	conf.Cascade = filepath.Join(t.TempDir(), "facefinder")
	_, err := newApp(testContext(t), conf)
	assert.ErrorContains(t, err, "cascade")
}

func TestWalkDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, dir, validExtensions)
	var got []string
	for p := range paths {
		got = append(got, filepath.Base(p))
	}
	require.NoError(t, <-errc)
	assert.ElementsMatch(t, []string{"a.png", "b.jpg"}, got)
}
