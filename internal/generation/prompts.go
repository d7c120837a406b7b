package generation

import "strings"

var localeLanguages = map[string]string{
	"en": "English",
	"id": "Indonesian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"es": "Spanish",
	"de": "German",
	"fr": "French",
}

func languageName(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(locale, "-_"); idx > 0 {
		locale = locale[:idx]
	}
	if name, ok := localeLanguages[locale]; ok {
		return name
	}
	return "English"
}

func scriptSystemPrompt(locale string) string {
	return "You write spoken narration for short e-commerce product videos. " +
		"Given a product photo and a seller's request, reply with only the narration text: " +
		"one enthusiastic paragraph of at most 60 words, no stage directions, no quotes. " +
		"Write in " + languageName(locale) + "."
}

func scriptUserPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Write a narration that makes shoppers want this product."
	}
	return "Write a narration for this product. Seller's request: " + prompt
}

func copySystemPrompt(locale string) string {
	return "You are a marketing copywriter for an e-commerce store. " +
		"Using the product photo and the conversation, produce persuasive, concrete copy. " +
		"Write in " + languageName(locale) + "."
}

func videoPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Slow cinematic showcase of the product, soft studio lighting, gentle camera orbit."
	}
	return prompt
}

// sessionName derives a short conversation title from the first prompt.
func sessionName(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "New conversation"
	}
	runes := []rune(prompt)
	if len(runes) > 40 {
		return string(runes[:40])
	}
	return prompt
}
