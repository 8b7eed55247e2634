package domain

import "strings"

// Artifact is one generated image of a batch.
type Artifact struct {
	Index      int    `json:"index"`
	PreviewURL string `json:"preview_url"`
	FullURL    string `json:"full_url"`
}

// IsDataURI reports whether the artifact bytes are embedded in its URL.
func (a Artifact) IsDataURI() bool {
	return IsDataURI(a.FullURL)
}

// IsDataURI reports whether raw is a data: URI.
func IsDataURI(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "data:")
}

// Mode selects which generation endpoint a widget calls.
type Mode string

const (
	ModeTextToImage  Mode = "text-to-image"
	ModeImageToImage Mode = "image-to-image"
	ModeAvatar       Mode = "avatar"
)

// NormalizeMode maps free-form input onto a supported mode.
func NormalizeMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeImageToImage), "img2img":
		return ModeImageToImage
	case string(ModeAvatar), "username-to-avatar":
		return ModeAvatar
	default:
		return ModeTextToImage
	}
}

// UnlockState is the per-artifact paywall state.
type UnlockState string

const (
	StateLocked         UnlockState = "LOCKED"
	StatePendingPayment UnlockState = "PENDING_PAYMENT"
	StateUnlocked       UnlockState = "UNLOCKED"
)
