// Package image generates the per-turn illustration. Two interchangeable
// backends exist: Zhipu's hosted text-to-image endpoint and a local ComfyUI
// instance driven through its polling workflow API. Both take a styled prompt
// in and hand an image reference out, under the same retry discipline.
package image

import (
	"context"
	"strings"
)

// Generator produces an image URL for a styled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, requestID string) (string, error)
}

// StylePrefix pins every illustration to the same retro pixel-art look.
const StylePrefix = "8位复古的像素艺术，SNES时代风格，边缘锐利无抗锯齿，标志性的有限色彩效果，复古游戏画面，"

// ApplyStyle prefixes the trimmed prompt with StylePrefix unless it already
// starts with it (case-insensitive), so repeated application is a no-op.
func ApplyStyle(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return strings.TrimSpace(StylePrefix)
	}
	if strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(StylePrefix)) {
		return trimmed
	}
	return StylePrefix + trimmed
}
