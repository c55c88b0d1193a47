package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suPer8Hu/agent-services/internal/session"
)

// historyLines caps how much of the recent transcript goes into the prompt.
const historyLines = 10

const rolePrompt = `You are Babel Bot, a senior construction engineer and site manager.
You advise on construction methods, building materials and their specifications,
building codes and standards, structural and MEP systems, scheduling and cost
estimation, site safety, quality control, renovation and sustainable building.
Construction terminology is familiar to you in Hebrew, English and Arabic.`

const guidelines = `1. Give accurate, practical advice grounded in industry standards.
2. Use correct construction terms and explain them when the user may not know them.
3. Be thorough where it matters and concise everywhere else.
4. For materials, cover specifications, typical uses, trade-offs and cost.
5. For methods, cover the steps, required equipment, timeline and safety.
6. Always call out relevant safety requirements and PPE.
7. If you are unsure, say so and point to the relevant code or standard.
8. Offer budget-conscious alternatives when appropriate.
9. Give measurements in metric and imperial units when relevant.
10. Answer in the user's language only. Never add translations.`

// DetectReplyLanguage picks the reply language: an explicit "language" in the
// request context wins, then the script of the last user message in history,
// then English.
func DetectReplyLanguage(reqCtx map[string]any, history []session.Message) string {
	if v, ok := reqCtx["language"]; ok && v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != session.RoleUser {
			continue
		}
		return scriptLanguage(history[i].Content)
	}
	return "en"
}

func scriptLanguage(text string) string {
	has := func(lo, hi rune) bool {
		return strings.ContainsFunc(text, func(r rune) bool { return r >= lo && r <= hi })
	}
	switch {
	case has(0x0590, 0x05FF):
		return "he"
	case has(0x0600, 0x06FF):
		return "ar"
	case has(0x4E00, 0x9FFF):
		return "zh"
	default:
		return "en"
	}
}

// BuildPrompt renders the chat prompt. history is the transcript before the
// current message.
func BuildPrompt(message string, history []session.Message, reqCtx map[string]any, lang string) string {
	var b strings.Builder
	b.WriteString("You are Babel Bot, a professional construction expert assistant.\n\n")
	fmt.Fprintf(&b, "ROLE:\n%s\n\nGUIDELINES:\n%s\n", rolePrompt, guidelines)

	if len(history) > 0 {
		recent := history
		if len(recent) > historyLines {
			recent = recent[len(recent)-historyLines:]
		}
		b.WriteString("\nRECENT CONVERSATION:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	if len(reqCtx) > 0 {
		keys := make([]string, 0, len(reqCtx))
		for k := range reqCtx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nADDITIONAL CONTEXT:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %v\n", k, reqCtx[k])
		}
	}

	fmt.Fprintf(&b, "\nUSER MESSAGE:\n%q\n\n", message)
	fmt.Fprintf(&b, "LANGUAGE REQUIREMENT:\nThe user writes in %s. Respond ONLY in %s, without translations into other languages.\n\n", lang, lang)
	b.WriteString("Respond as an experienced construction engineer. Output only the reply, with no meta-commentary.")
	return b.String()
}
