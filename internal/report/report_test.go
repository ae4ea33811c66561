package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"NmapVulners/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var httpQuery = model.ServiceQuery{Product: "http", Version: "1.0", Host: "10.0.0.5", Port: 80}

func TestRenderEmpty(t *testing.T) {
	assert.Equal(t, "# Scan", New().Render())
}

func TestRenderBlock(t *testing.T) {
	r := New()
	r.Add(httpQuery, model.Finding{Index: 1, Score: 7.5, Link: "https://example/CVE-1", Description: "demo"})

	want := "# Scan" +
		"\n\n## http v1.0 on 10.0.0.5:80 with score of 7.5 #1 " +
		"\n\nMore information here: [https://example/CVE-1](https://example/CVE-1)" +
		"\n\ndemo"
	assert.Equal(t, want, r.Render())
}

func TestRenderUsesScoreText(t *testing.T) {
	r := New()
	r.Add(httpQuery, model.Finding{Index: 1, Score: 5, ScoreText: "5", Link: "a", Description: "a"})
	r.Add(httpQuery, model.Finding{Index: 2, Score: 5, Link: "b", Description: "b"})

	out := r.Render()
	assert.Contains(t, out, "with score of 5 #1 ")
	assert.Contains(t, out, "with score of 5.0 #2 ")
}

func TestRenderOrderAndIdempotence(t *testing.T) {
	r := New()
	for i, link := range []string{"E1", "E2", "E3"} {
		r.Add(httpQuery, model.Finding{Index: i + 1, Score: 5, Link: link, Description: link})
	}

	out := r.Render()
	assert.Equal(t, out, r.Render())

	i1 := strings.Index(out, "#1 ")
	i2 := strings.Index(out, "#2 ")
	i3 := strings.Index(out, "#3 ")
	assert.True(t, i1 > 0 && i1 < i2 && i2 < i3, "顺序错误:\n%s", out)
	assert.Less(t, strings.Index(out, "[E1]"), strings.Index(out, "[E2]"))
	assert.Less(t, strings.Index(out, "[E2]"), strings.Index(out, "[E3]"))
	assert.Equal(t, 3, r.Len())
}

func TestFormatScore(t *testing.T) {
	cases := map[float64]string{
		7.5:  "7.5",
		5:    "5.0",
		10:   "10.0",
		0:    "0.0",
		4.25: "4.25",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatScore(in), "score %v", in)
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"scan.xml":          "scan.md",
		"report":            "report.md",
		"dir/scan.xml":      "dir/scan.md",
		"scan.xml.bak":      "scan.xml.bak.md",
		"lab.nmap.xml":      "lab.nmap.md",
		"/tmp/x/network.md": "/tmp/x/network.md.md",
	}
	for in, want := range cases {
		assert.Equal(t, want, OutputName(in), "input %q", in)
	}
}

func TestPersistOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.md")
	require.NoError(t, Persist(path, "first version, longer"))
	require.NoError(t, Persist(path, "second"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "临时文件应被清理")
}

func TestPersistMissingDir(t *testing.T) {
	err := Persist(filepath.Join(t.TempDir(), "missing", "scan.md"), "x")
	assert.Error(t, err)
}

func TestAccumulatorCheckpoints(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), DefaultScratchFile)
	acc := NewAccumulator(New(), scratch)

	require.NoError(t, acc.Start())
	data, err := os.ReadFile(scratch)
	require.NoError(t, err)
	assert.Equal(t, "# Scan", string(data))

	require.NoError(t, acc.Append(httpQuery, []model.Finding{
		{Index: 1, Score: 7.5, Link: "a", Description: "first"},
		{Index: 2, Score: 5.0, Link: "b", Description: "second"},
	}))
	data, err = os.ReadFile(scratch)
	require.NoError(t, err)
	assert.Equal(t, acc.Report().Render(), string(data))
	assert.Equal(t, 2, acc.Report().Len())

	require.NoError(t, acc.Append(httpQuery, nil))
	assert.Equal(t, 2, acc.Report().Len())
}

func TestAccumulatorWithoutCheckpoint(t *testing.T) {
	acc := NewAccumulator(New(), "")
	require.NoError(t, acc.Start())
	require.NoError(t, acc.Append(httpQuery, []model.Finding{{Index: 1}}))
	assert.Equal(t, 1, acc.Report().Len())
}

func TestAccumulatorKeepsAppendingOnCheckpointError(t *testing.T) {
	acc := NewAccumulator(New(), filepath.Join(t.TempDir(), "missing", "scratch.md"))
	err := acc.Append(httpQuery, []model.Finding{{Index: 1}, {Index: 2}})
	assert.Error(t, err)
	assert.Equal(t, 2, acc.Report().Len())
}
