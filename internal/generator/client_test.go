package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unlockstudio/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL + "/", Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Options{})
	require.Error(t, err)

	c, err := NewClient(Options{BaseURL: "http://gen.local"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.Timeout())
}

func TestGenerateTextToImage(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, textToImagePath, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"artifacts":[{"url":"https://cdn.example.com/a.png"},{},{"base64":"aGVsbG8="}]}`))
	}, time.Second)

	arts, err := c.Generate(context.Background(), Request{Mode: domain.ModeTextToImage, Prompt: " a cat ", Size: "1024x1024"})
	require.NoError(t, err)
	assert.Equal(t, "a cat", got["prompt"])
	assert.Equal(t, "1024x1024", got["size"])

	require.Len(t, arts, 2, "artifact with neither url nor base64 is dropped")
	assert.Equal(t, 0, arts[0].Index)
	assert.Equal(t, "https://cdn.example.com/a.png", arts[0].FullURL)
	assert.Equal(t, 1, arts[1].Index)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", arts[1].FullURL)
	assert.Equal(t, arts[1].FullURL, arts[1].PreviewURL)
}

func TestGenerateImageToImage(t *testing.T) {
	var got imageToImageBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, imageToImagePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"artifacts":[{"url":"https://cdn.example.com/b.png"}]}`))
	}, time.Second)

	_, err := c.Generate(context.Background(), Request{
		Mode:      domain.ModeImageToImage,
		Prompt:    "watercolor",
		InitImage: "data:image/png;base64,QUJD",
	})
	require.NoError(t, err)
	require.Len(t, got.TextPrompts, 1)
	assert.Equal(t, "watercolor", got.TextPrompts[0].Text)
	assert.Equal(t, 1.0, got.TextPrompts[0].Weight)
	assert.Equal(t, "QUJD", got.InitImage)
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://gen.local"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), Request{Prompt: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)

	_, err = c.Generate(context.Background(), Request{Mode: domain.ModeImageToImage, Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)
}

func TestGenerateEmptyResultIsGenerationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"artifacts":[{"url":""},{"base64":"  "}]}`))
	}, time.Second)

	_, err := c.Generate(context.Background(), Request{Prompt: "a cat"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindGeneration))
}

func TestGenerateClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   domain.ErrorKind
	}{
		{"structured kind wins", http.StatusBadRequest, `{"error":"rejected","kind":"content_policy"}`, domain.KindContentPolicy},
		{"structured code", http.StatusBadRequest, `{"error":"rejected","code":"unsafe_content"}`, domain.KindContentPolicy},
		{"other structured kind ignores text", http.StatusBadRequest, `{"error":"nsfw filter offline","kind":"upstream"}`, domain.KindGeneration},
		{"message heuristic", http.StatusBadRequest, `{"error":"Prompt blocked by our Safety System"}`, domain.KindContentPolicy},
		{"plain failure", http.StatusInternalServerError, `{"error":"boom"}`, domain.KindGeneration},
		{"non json body", http.StatusBadGateway, `<html>bad gateway</html>`, domain.KindGeneration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, time.Second)
			_, err := c.Generate(context.Background(), Request{Prompt: "a cat"})
			require.Error(t, err)
			assert.Equal(t, tc.want, domain.KindOf(err))
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := c.Generate(context.Background(), Request{Prompt: "a cat"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTimeout))
}

func TestIsContentPolicyMessage(t *testing.T) {
	assert.True(t, IsContentPolicyMessage("This request contains SENSITIVE CONTENT"))
	assert.True(t, IsContentPolicyMessage("nsfw"))
	assert.False(t, IsContentPolicyMessage("quota exceeded"))
}
