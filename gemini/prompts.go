// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package gemini

import "fmt"

func transcribePrompt(startLabel string) string {
	return fmt.Sprintf(`Transcribe this audio segment verbatim.
The segment starts at %s in the full recording. Prefix each new speaker turn with a [MM:SS]
timestamp relative to the full recording, starting from %s, and label speakers consistently
(Speaker 1, Speaker 2, ...) unless they are introduced by name.
Output only the transcript. If the segment contains no speech, output nothing.`, startLabel, startLabel)
}

const analysisPrompt = `Analyse the transcript below. Return JSON with:
- summary: a concise paragraph
- keyPoints: the main points, in order of appearance
- speakers: every distinct speaker label or name used in the transcript, in order of first appearance
- suggestedTitle: a short descriptive title`

func extractPrompt(url string) string {
	return fmt.Sprintf(`Find the spoken content of %s.
If it is a video, use its captions or transcript. Otherwise use the text of the page.
Output the transcript as plain text with [MM:SS] timestamps where they are known.
Do not summarise and do not add commentary.`, url)
}
