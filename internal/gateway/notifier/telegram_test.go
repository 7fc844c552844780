package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageShortTextPassesThrough(t *testing.T) {
	out := splitMessage("hello", maxMessageLen)
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0])
}

func TestSplitMessagePrefersNewlineBoundary(t *testing.T) {
	line := strings.Repeat("x", 80) + "\n"
	text := strings.Repeat(line, 70) // ~5670 chars
	out := splitMessage(text, maxMessageLen)
	require.Greater(t, len(out), 1)
	for i, chunk := range out {
		assert.LessOrEqual(t, len([]rune(chunk)), maxMessageLen, "chunk %d", i)
	}
	assert.True(t, strings.HasSuffix(out[0], "\n"), "first chunk should end on a line break")
	assert.Equal(t, text, strings.Join(out, ""))
}

func TestSplitMessageHardCutWithoutNewlines(t *testing.T) {
	text := strings.Repeat("a", maxMessageLen+100)
	out := splitMessage(text, maxMessageLen)
	require.Len(t, out, 2)
	assert.Len(t, out[0], maxMessageLen)
	assert.Len(t, out[1], 100)
}

func TestSendTextPostsMarkdownPayload(t *testing.T) {
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc", "-100200300")
	tg.APIBase = srv.URL
	require.NoError(t, tg.SendText(context.Background(), "*BTCUSDT* holding above support"))

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "-100200300", payload["chat_id"])
	assert.Equal(t, "*BTCUSDT* holding above support", payload["text"])
	assert.Equal(t, "Markdown", payload["parse_mode"])
}

func TestSendPhotoBodyMatchesDeclaredBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ParseMultipartForm reads the body with the boundary advertised in
		// Content-Type, so it fails if header and body disagree.
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "-100200300", r.FormValue("chat_id"))
		assert.Equal(t, "BTCUSDT 4h chart", r.FormValue("caption"))
		file, header, err := r.FormFile("photo")
		if assert.NoError(t, err) {
			defer file.Close()
			assert.Equal(t, "chart.png", header.Filename)
			data, err := io.ReadAll(file)
			assert.NoError(t, err)
			assert.Equal(t, "png-bytes", string(data))
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc", "-100200300")
	tg.APIBase = srv.URL
	require.NoError(t, tg.SendPhoto(context.Background(), path, "BTCUSDT 4h chart"))
}

func TestSendPhotoRetryRebuildsParseableBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every attempt carries a freshly built body whose boundary must
		// match that attempt's own header.
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "-100200300", r.FormValue("chat_id"))
		if atomic.AddInt32(&attempts, 1) == 1 {
			http.Error(w, `{"ok":false}`, http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc", "-100200300")
	tg.APIBase = srv.URL
	require.NoError(t, tg.SendPhoto(context.Background(), path, ""))
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestSendRequiresCredentials(t *testing.T) {
	empty := NewTelegram("", "")
	assert.False(t, empty.Enabled())
	assert.Error(t, empty.SendText(context.Background(), "hi"))
	assert.Error(t, empty.SendPhoto(context.Background(), "chart.png", ""))

	configured := NewTelegram("123:abc", "-100200300")
	assert.True(t, configured.Enabled())
}
