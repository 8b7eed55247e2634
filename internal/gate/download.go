package gate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"unlockstudio/internal/domain"
)

// Blob is downloaded image content ready to be saved by the client.
type Blob struct {
	Filename string
	MIME     string
	Data     []byte
}

// Fetcher retrieves remote image bytes through the same-origin proxy.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Blob, error)
}

// Download returns the full image for an unlocked index. Data URIs are decoded
// in place; remote URLs go through the proxy fetcher once. Failures are
// reported as download errors and never change unlock state.
func (g *Gate) Download(ctx context.Context, index int) (Blob, error) {
	g.mu.Lock()
	if err := g.checkIndexLocked(index); err != nil {
		g.mu.Unlock()
		return Blob{}, domain.NewError(domain.KindDownload, "image not found", err)
	}
	if _, ok := g.unlocked[index]; !ok {
		g.mu.Unlock()
		return Blob{}, domain.ErrArtifactLocked
	}
	artifact := g.artifacts[index]
	fetcher := g.fetcher
	g.mu.Unlock()

	fullURL := strings.TrimSpace(artifact.FullURL)
	if fullURL == "" {
		return Blob{}, domain.NewError(domain.KindDownload, "image url is missing", nil)
	}
	if domain.IsDataURI(fullURL) {
		mime, data, err := DecodeDataURI(fullURL)
		if err != nil {
			return Blob{}, domain.NewError(domain.KindDownload, "image data is corrupt", err)
		}
		return Blob{Filename: Filename(index, mime), MIME: mime, Data: data}, nil
	}
	if fetcher == nil {
		return Blob{}, domain.NewError(domain.KindDownload, "download proxy is not configured", nil)
	}
	blob, err := fetcher.Fetch(ctx, fullURL)
	if err != nil {
		if domain.IsKind(err, domain.KindDownload) {
			return Blob{}, err
		}
		return Blob{}, domain.NewError(domain.KindDownload, "failed to download image", err)
	}
	if blob.MIME == "" {
		blob.MIME = "image/png"
	}
	blob.Filename = Filename(index, blob.MIME)
	return blob, nil
}

// DecodeDataURI parses a data: URI into its media type and bytes.
func DecodeDataURI(raw string) (string, []byte, error) {
	raw = strings.TrimSpace(raw)
	if !domain.IsDataURI(raw) {
		return "", nil, errors.New("not a data uri")
	}
	comma := strings.IndexByte(raw, ',')
	if comma < 0 {
		return "", nil, errors.New("data uri: missing payload")
	}
	meta := raw[len("data:"):comma]
	payload := raw[comma+1:]
	isBase64 := false
	mime := ""
	for i, part := range strings.Split(meta, ";") {
		part = strings.TrimSpace(part)
		if i == 0 {
			mime = strings.ToLower(part)
			continue
		}
		if strings.EqualFold(part, "base64") {
			isBase64 = true
		}
	}
	if mime == "" {
		mime = "text/plain"
	}
	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("data uri: %w", err)
		}
		return mime, []byte(decoded), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("data uri: %w", err)
		}
	}
	return mime, data, nil
}

// Filename names a downloaded image by its 1-based position.
func Filename(index int, mime string) string {
	return fmt.Sprintf("generated-image-%d.%s", index+1, extension(mime))
}

func extension(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
