package pipeline

import (
	"fmt"
	"strings"

	"github.com/storyreel/storyreel/internal/jobs"
)

const continuationInstruction = "Continue directly from the previous scene. " +
	"Keep the same characters, the same setting and the same visual style. " +
	"Do not introduce new characters, locations or visual elements."

// BuildPrompt assembles the full generation prompt for one scene. Every
// prompt carries the shared story context so characters and style stay
// consistent; continuation scenes additionally instruct the model to pick
// up where the prior clip ended.
func BuildPrompt(scene jobs.Scene, storyCtx *jobs.StoryContext, isContinuation bool) string {
	var sb strings.Builder

	if storyCtx != nil {
		if len(storyCtx.Characters) > 0 {
			names := make([]string, 0, len(storyCtx.Characters))
			for _, c := range storyCtx.Characters {
				if c.Description != "" {
					names = append(names, fmt.Sprintf("%s (%s)", c.Name, c.Description))
				} else {
					names = append(names, c.Name)
				}
			}
			fmt.Fprintf(&sb, "Characters: %s. ", strings.Join(names, ", "))
		}
		if storyCtx.Setting != "" {
			fmt.Fprintf(&sb, "Setting: %s. ", storyCtx.Setting)
		}
		if storyCtx.VisualStyle != "" {
			fmt.Fprintf(&sb, "Visual style: %s. ", storyCtx.VisualStyle)
		}
		if storyCtx.Theme != "" {
			fmt.Fprintf(&sb, "Theme: %s. ", storyCtx.Theme)
		}
		if storyCtx.Language != "" {
			fmt.Fprintf(&sb, "Story language: %s. ", storyCtx.Language)
		}
	}

	if isContinuation {
		sb.WriteString(continuationInstruction)
		sb.WriteString(" ")
	}

	fmt.Fprintf(&sb, "Scene %d: %s", scene.Index, scene.Description)
	return sb.String()
}
