package memory

import (
	"regexp"
	"strings"
	"unicode"
)

// GateDecision is the outcome of the adaptive retrieval gate.
type GateDecision struct {
	// Retrieve indicates retrieval should run for this message.
	Retrieve bool

	// Reason names the rule that produced the decision.
	Reason string
}

// Gate decision reasons.
const (
	GateForced     = "forced"
	GateDefault    = "default"
	GateTooShort   = "too_short"
	GateGreeting   = "greeting"
	GateCommand    = "command"
	GateEmojiOnly  = "emoji_only"
	GateEmptyInput = "empty"
)

// forcePatterns match messages that must trigger retrieval regardless of
// length: memory-recall intent, temporal back-references, and questions
// about stored personal facts. English and Chinese forms.
var forcePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(remember|recall|forgot|forgotten)\b`),
	regexp.MustCompile(`(?i)\b(last time|previously|earlier|before we|we (discussed|talked|decided|agreed))\b`),
	regexp.MustCompile(`(?i)\bwhat('s| is| was| did)\b.*\b(my|our|i)\b`),
	regexp.MustCompile(`(?i)\bmy (name|preference|setting|config|birthday|email)\b`),
	regexp.MustCompile(`记得|还记|上次|之前|以前|我们(说过|讨论|决定)|我的(名字|偏好|设置|生日)`),
}

// greetingPatterns match standalone greetings and affirmations that carry
// no retrievable intent.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey|yo|sup|howdy)\b[!.\s]*$`),
	regexp.MustCompile(`(?i)^(thanks|thank you|thx|ty)\b[!.\s]*$`),
	regexp.MustCompile(`(?i)^(ok|okay|yes|no|yep|nope|sure|fine|cool|great|nice|good)\b[!.\s]*$`),
	regexp.MustCompile(`(?i)^(bye|goodbye|good night|good morning|good evening)\b[!.\s]*$`),
	regexp.MustCompile(`^(你好|您好|嗨|哈喽|谢谢|多谢|好的|好吧|嗯|行|再见|晚安|早|早安)[!！。.\s]*$`),
}

// EvaluateGate decides whether a message warrants memory retrieval.
// Force patterns are checked before every skip rule so that a short recall
// question like "my name?" still retrieves.
func EvaluateGate(message string) GateDecision {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return GateDecision{Retrieve: false, Reason: GateEmptyInput}
	}

	for _, p := range forcePatterns {
		if p.MatchString(trimmed) {
			return GateDecision{Retrieve: true, Reason: GateForced}
		}
	}

	// Slash and bang prefixes are tool commands, not conversation.
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "!") {
		return GateDecision{Retrieve: false, Reason: GateCommand}
	}

	if isEmojiOnly(trimmed) {
		return GateDecision{Retrieve: false, Reason: GateEmojiOnly}
	}

	for _, p := range greetingPatterns {
		if p.MatchString(trimmed) {
			return GateDecision{Retrieve: false, Reason: GateGreeting}
		}
	}

	// CJK packs far more meaning per rune, so its threshold is lower.
	if containsCJK(trimmed) {
		if len([]rune(trimmed)) < 6 {
			return GateDecision{Retrieve: false, Reason: GateTooShort}
		}
	} else if len(trimmed) < 15 {
		return GateDecision{Retrieve: false, Reason: GateTooShort}
	}

	return GateDecision{Retrieve: true, Reason: GateDefault}
}

// containsCJK reports whether the text contains any Han, Hiragana,
// Katakana, or Hangul runes.
func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) ||
			unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) ||
			unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// isEmojiOnly reports whether the text consists solely of emoji,
// symbols, and whitespace.
func isEmojiOnly(text string) bool {
	sawSymbol := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
		if unicode.IsSymbol(r) || r >= 0x1F000 || unicode.IsPunct(r) {
			sawSymbol = true
			continue
		}
		return false
	}
	return sawSymbol
}
