package llm

import (
	"fmt"
	"sort"
	"strings"
)

const essaySystemPrompt = `You are an experienced college admissions essay coach. Draft a personal statement for the student using only the experiences and details they provide.

Guidelines:
- Write in the first person, in a natural and conversational voice suited to a high-school senior.
- Answer the prompt directly and build the essay around one clear story or theme.
- Use concrete details from the student's answers; do not invent achievements, people or events.
- Show reflection and growth rather than listing accomplishments.
- Stay within %d words.

The draft is a starting point the student will revise in their own words.`

const improveSystemPrompt = `You are an experienced college admissions essay editor. Revise the student's essay to address the feedback while keeping their voice, their facts and their story. Do not add experiences that are not in the original. Return only the revised essay.`

// EssayPrompt builds the request for a first draft.
// Responses are listed in key order so the same input always yields the same prompt.
func EssayPrompt(school, prompt string, responses map[string]string, wordLimit int) Request {
	keys := make([]string, 0, len(responses))
	for k := range responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Please draft a college application essay for %s.\n\n", school)
	fmt.Fprintf(&b, "PROMPT: %q\n\nSTUDENT RESPONSES:\n", prompt)
	for _, k := range keys {
		v := strings.TrimSpace(responses[k])
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n\n", strings.ToUpper(k), v)
	}
	fmt.Fprintf(&b, "Weave these answers into one narrative that addresses the prompt in about %d words.", wordLimit)

	return Request{
		SystemPrompt: fmt.Sprintf(essaySystemPrompt, wordLimit),
		UserPrompt:   b.String(),
		// Roughly 1.5 tokens per word leaves room for the full essay.
		MaxTokens:   wordLimit * 3 / 2,
		Temperature: 0.8,
	}
}

// ImprovePrompt builds the request for revising an essay with feedback.
func ImprovePrompt(original, feedback string) Request {
	user := fmt.Sprintf("Please revise this essay based on the feedback.\n\nORIGINAL ESSAY:\n%s\n\nFEEDBACK:\n%s", original, feedback)
	return Request{
		SystemPrompt: improveSystemPrompt,
		UserPrompt:   user,
		MaxTokens:    2000,
		Temperature:  0.7,
	}
}
