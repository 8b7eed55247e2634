package generator

import (
	"strings"

	"unlockstudio/internal/domain"
)

// contentPolicyKinds are structured error kinds the API may send.
var contentPolicyKinds = map[string]struct{}{
	"content_policy":           {},
	"content_policy_violation": {},
	"sensitive_content":        {},
	"unsafe_content":           {},
}

// contentPolicyPhrases match upstream prose when no structured kind is sent.
var contentPolicyPhrases = []string{
	"sensitive content",
	"unsafe content",
	"content policy",
	"safety system",
	"nsfw",
}

// Classify turns a failed generation into its error kind. A structured kind
// from the API takes precedence over matching the message text.
func Classify(message, kind string) *domain.Error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" {
		if _, ok := contentPolicyKinds[kind]; ok {
			return domain.NewError(domain.KindContentPolicy, message, nil)
		}
		if kind == "timeout" {
			return domain.NewError(domain.KindTimeout, message, nil)
		}
		return domain.NewError(domain.KindGeneration, message, nil)
	}
	if IsContentPolicyMessage(message) {
		return domain.NewError(domain.KindContentPolicy, message, nil)
	}
	return domain.NewError(domain.KindGeneration, message, nil)
}

// IsContentPolicyMessage reports whether msg looks like a safety rejection.
func IsContentPolicyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range contentPolicyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
