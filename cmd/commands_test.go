package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/podcast-dl/internal/services/recognition"
	"github.com/killallgit/podcast-dl/pkg/config"
	"github.com/killallgit/podcast-dl/pkg/download"
	apperrors "github.com/killallgit/podcast-dl/pkg/errors"
	"github.com/killallgit/podcast-dl/pkg/transcript"
)

// isolate points configuration discovery and default directories at a
// temporary tree and returns its root
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("PODCAST_DL_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("PODCAST_DL_OUTPUT_DIR", filepath.Join(dir, "out"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

type fakeEngine struct {
	mu       sync.Mutex
	requests []recognition.Request
	fail     error
	closed   bool
}

func (f *fakeEngine) Transcribe(ctx context.Context, req recognition.Request, progress recognition.ProgressFunc) (*transcript.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}

	language := req.Language
	if language == "" {
		language = "en"
	}
	result := transcript.NewResult(language)
	if err := result.Append(transcript.Segment{Start: 0, End: 2, Text: "hello"}); err != nil {
		return nil, err
	}
	if err := result.Append(transcript.Segment{Start: 2, End: 4.5, Text: "world"}); err != nil {
		return nil, err
	}
	result.Freeze()
	return result, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func withEngine(engine *fakeEngine) *commandContext {
	app := newCommandContext()
	app.newTranscriber = func(cfg *config.Config, modelCacheDir string) (transcriber, error) {
		return engine, nil
	}
	return app
}

func execute(t *testing.T, app *commandContext, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(app)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Show</title>
  <item>
    <title>Episode One</title>
    <pubDate>Mon, 01 Jan 2024 10:00:00 +0000</pubDate>
    <enclosure url="%[1]s/audio/one.mp3" type="audio/mpeg" length="5"/>
  </item>
  <item>
    <title>Episode Three</title>
    <pubDate>Sun, 03 Mar 2024 10:00:00 +0000</pubDate>
    <enclosure url="%[1]s/audio/three.mp3" type="audio/mpeg" length="5"/>
  </item>
  <item>
    <title>Bonus Two</title>
    <pubDate>Fri, 02 Feb 2024 10:00:00 +0000</pubDate>
    <enclosure url="%[1]s/audio/two.mp3" type="audio/mpeg" length="5"/>
  </item>
  <item>
    <title>Trailer</title>
    <enclosure url="%[1]s/audio/trailer.mp3" type="audio/mpeg" length="5"/>
  </item>
</channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedTemplate, server.URL)
	})
	mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("audio"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDownload_List(t *testing.T) {
	isolate(t)
	server := feedServer(t)

	out, err := execute(t, newCommandContext(), "download", server.URL+"/feed.xml", "--list")
	require.NoError(t, err)

	assert.Contains(t, out, "    1. [2024-03-03] Episode Three\n")
	assert.Contains(t, out, "    2. [2024-02-02] Bonus Two\n")
	assert.Contains(t, out, "    3. [2024-01-01] Episode One\n")
	assert.Contains(t, out, "    4. [unknown date] Trailer\n")
}

func TestDownload_ListFiltered(t *testing.T) {
	isolate(t)
	server := feedServer(t)

	out, err := execute(t, newCommandContext(), "download", server.URL+"/feed.xml", "--list", "--filter", "EPISODE", "--latest", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Episode Three")
	assert.NotContains(t, out, "Episode One")
	assert.NotContains(t, out, "Bonus Two")
}

func TestDownload_Feed(t *testing.T) {
	dir := isolate(t)
	server := feedServer(t)

	out, err := execute(t, newCommandContext(), "download", server.URL+"/feed.xml", "--latest", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Done! Output in: "+filepath.Join(dir, "out"))

	for _, name := range []string{"Episode Three.mp3", "Bonus Two.mp3"} {
		data, err := os.ReadFile(filepath.Join(dir, "out", name))
		require.NoError(t, err, name)
		assert.Equal(t, "audio", string(data))
	}
	_, err = os.Stat(filepath.Join(dir, "out", "Episode One.mp3"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownload_Direct(t *testing.T) {
	dir := isolate(t)
	server := feedServer(t)
	target := filepath.Join(dir, "elsewhere")

	out, err := execute(t, newCommandContext(), "download", server.URL+"/audio/interview.mp3?x=1", "--direct", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Done! Output in: "+target)

	data, err := os.ReadFile(filepath.Join(target, "interview.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestDownload_FeedUnavailable(t *testing.T) {
	isolate(t)
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := execute(t, newCommandContext(), "download", server.URL+"/feed.xml", "--list")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeFeedUnavailable))
}

func TestRun_Feed(t *testing.T) {
	dir := isolate(t)
	server := feedServer(t)
	engine := &fakeEngine{}

	out, err := execute(t, withEngine(engine), "run", server.URL+"/feed.xml",
		"--latest", "2", "--format", "all", "-m", "small", "-l", "de")
	require.NoError(t, err)
	assert.True(t, engine.closed)
	assert.Contains(t, out, "Done! Output in: "+filepath.Join(dir, "out"))
	assert.Contains(t, out, "Episode Three")

	require.Len(t, engine.requests, 2)
	assert.Equal(t, "small", engine.requests[0].ModelSize)
	assert.Equal(t, "de", engine.requests[0].Language)
	assert.Equal(t, filepath.Join(dir, "out", "Episode Three.mp3"), engine.requests[0].AudioPath)

	for _, ext := range []string{"txt", "srt", "json"} {
		_, err := os.Stat(filepath.Join(dir, "out", "Bonus Two."+ext))
		assert.NoError(t, err, ext)
	}
	text, err := os.ReadFile(filepath.Join(dir, "out", "Episode Three.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "hello\nworld")

	// History recorded both episodes of the run
	out, err = execute(t, newCommandContext(), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Episode Three")
	assert.Contains(t, out, "Bonus Two")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "txt,srt,json")
}

func TestRun_FailuresExitNonZero(t *testing.T) {
	isolate(t)
	server := feedServer(t)
	engine := &fakeEngine{fail: apperrors.DecodeFailed("x.mp3", errors.New("corrupt stream"))}

	out, err := execute(t, withEngine(engine), "run", server.URL+"/feed.xml", "--latest", "2")
	require.Error(t, err)
	assert.Len(t, engine.requests, 2, "a failed episode does not stop the batch")
	assert.Contains(t, out, "Finished with failures")
	assert.Contains(t, out, string(apperrors.ErrCodeDecodeFailed))

	out, err = execute(t, newCommandContext(), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "transcribe")
}

func TestRun_DirectFailureIsResult(t *testing.T) {
	isolate(t)
	server := feedServer(t)
	engine := &fakeEngine{fail: apperrors.DecodeFailed("x.mp3", errors.New("corrupt stream"))}

	_, err := execute(t, withEngine(engine), "run", server.URL+"/audio/one.mp3", "--direct")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeDecodeFailed))
}

func TestRun_InvalidFormat(t *testing.T) {
	isolate(t)
	server := feedServer(t)

	_, err := execute(t, withEngine(&fakeEngine{}), "run", server.URL+"/feed.xml", "--format", "docx")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeConfigInvalid))
}

func TestRun_SkipExisting(t *testing.T) {
	dir := isolate(t)
	server := feedServer(t)
	existing := filepath.Join(dir, "out", "Episode Three.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("kept"), 0o644))

	_, err := execute(t, withEngine(&fakeEngine{}), "run", server.URL+"/feed.xml")
	require.NoError(t, err)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))

	_, err = execute(t, withEngine(&fakeEngine{}), "run", server.URL+"/feed.xml", "--skip-existing=false")
	require.NoError(t, err)
	data, err = os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestTranscribe_LocalFile(t *testing.T) {
	dir := isolate(t)
	audio := filepath.Join(dir, "talk.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))
	engine := &fakeEngine{}

	out, err := execute(t, withEngine(engine), "transcribe", audio, "--format", "srt")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved: "+filepath.Join(dir, "talk.srt"))
	assert.Contains(t, out, "talk.wav")

	srt, err := os.ReadFile(filepath.Join(dir, "talk.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(srt), "00:00:00,000 --> 00:00:02,000")
	require.Len(t, engine.requests, 1)
	assert.Equal(t, audio, engine.requests[0].AudioPath)
}

func TestTranscribe_CustomBase(t *testing.T) {
	dir := isolate(t)
	audio := filepath.Join(dir, "talk.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3"), 0o644))
	base := filepath.Join(dir, "notes", "meeting")

	out, err := execute(t, withEngine(&fakeEngine{}), "transcribe", audio, "-o", base)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved: "+base+".txt")
	_, err = os.Stat(base + ".txt")
	assert.NoError(t, err)
}

func TestTranscribe_MissingFile(t *testing.T) {
	dir := isolate(t)

	_, err := execute(t, withEngine(&fakeEngine{}), "transcribe", filepath.Join(dir, "missing.mp3"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}

func TestHistory_Empty(t *testing.T) {
	isolate(t)

	out, err := execute(t, newCommandContext(), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history yet.")
}

func TestHistory_Disabled(t *testing.T) {
	isolate(t)
	t.Setenv("PODCAST_DL_HISTORY_ENABLED", "false")

	_, err := execute(t, newCommandContext(), "history")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeConfigInvalid))
}

func TestHistory_Prune(t *testing.T) {
	isolate(t)
	server := feedServer(t)

	_, err := execute(t, withEngine(&fakeEngine{}), "run", server.URL+"/feed.xml")
	require.NoError(t, err)

	out, err := execute(t, newCommandContext(), "history", "prune", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 history records")

	_, err = execute(t, newCommandContext(), "history", "prune", "--older-than", "0s")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}

func TestCleanup(t *testing.T) {
	dir := isolate(t)
	outDir := filepath.Join(dir, "out", "show")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	stale := filepath.Join(outDir, "old.mp3"+download.PartSuffix)
	fresh := filepath.Join(outDir, "new.mp3"+download.PartSuffix)
	done := filepath.Join(outDir, "done.mp3")
	for _, p := range []string{stale, fresh, done} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(done, old, old))

	out, err := execute(t, newCommandContext(), "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 partial downloads")

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, done)

	out, err = execute(t, newCommandContext(), "cleanup", "--max-age", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 partial downloads")
	assert.NoFileExists(t, fresh)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	isolate(t)
	port := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := newRootCmd(newCommandContext())
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"serve", "--port", strconv.Itoa(port)})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}
