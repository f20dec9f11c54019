// Package chat implements the rule-based task assistant of the TaskBox service.
// It parses user messages into task intents, performs the matching todo
// operations, and formats friendly replies using a configurable persona.
package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Action is a task operation requested through the assistant.
type Action string

// Actions reported in the action_performed field of chat responses.
const (
	ActionCreate   Action = "CREATE"
	ActionRead     Action = "READ"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionComplete Action = "COMPLETE"
	ActionNone     Action = "NONE"
)

// Intent is the parsed meaning of a user message.
type Intent struct {
	Action     Action
	Confidence float64
}

// Parser identifies the intent of user messages and extracts task titles.
type Parser struct {
	createPatterns   []*regexp.Regexp
	readPatterns     []*regexp.Regexp
	completePatterns []*regexp.Regexp
	updatePatterns   []*regexp.Regexp
	deletePatterns   []*regexp.Regexp
}

// NewParser compiles the intent patterns.
func NewParser() *Parser {
	compile := func(patterns ...string) []*regexp.Regexp {
		res := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			res = append(res, regexp.MustCompile(p))
		}
		return res
	}

	return &Parser{
		createPatterns: compile(
			`(add|create|make|new)\s+(?:a\s+|an\s+|the\s+)?(.+?)\s+to\s+my\s+list`,
			`(add|create|make|new)\s+(?:a\s+|an\s+|the\s+)?(.+?)\s+(?:to\s+my\s+)?(?:task|todo|to-do)\s+list`,
			`(add|create|make|new)\s+(.+)`,
			`i\s+need\s+to\s+(.+)`,
			`don'?t\s+forget\s+to\s+(.+)`,
			`remind\s+me\s+to\s+(.+)`,
		),
		readPatterns: compile(
			`(show|display|list|view|see|what.*have|what.*got)\s+(?:my\s+)?(?:tasks|todos|to-dos|list|task)`,
			`(what|which)\s+(?:tasks|todos|to-dos)\s+(?:do\s+i\s+have|are\s+on\s+my\s+list)`,
			`my\s+(?:current\s+)?(?:tasks|todos|to-dos)`,
			`help\s+me\s+organize`,
			`what\s+should\s+i\s+do`,
		),
		completePatterns: compile(
			`(complete|finish|done|completed|finished)\s+(?:the\s+)?(.+?)`,
			`(mark|set)\s+(?:the\s+)?(.+?)\s+(?:as\s+)?(complete|done|finished)`,
			`i\s+(?:have\s+)?(completed|finished|done)\s+(?:the\s+)?(.+?)`,
			`cross\s+(?:the\s+)?(.+?)\s+off\s+(?:my\s+)?(?:list|tasks)`,
		),
		updatePatterns: compile(
			`(change|update|edit|modify)\s+(?:the\s+)?(.+?)\s+(?:to|as)\s+(.+)`,
			`(update|change|edit|modify)\s+(?:the\s+)?(.+?)`,
			`rename\s+(?:the\s+)?(.+?)\s+(?:to|as)\s+(.+)`,
		),
		deletePatterns: compile(
			`(delete|remove|eliminate|get rid of)\s+(?:the\s+)?(.+?)`,
			`(delete|remove|eliminate|get rid of)\s+(?:task|todo|to-do)\s+(?:named|called|titled)\s+(.+?)`,
		),
	}
}

// ParseIntent determines the intent of a user message.
//
// Complete is checked before create, and both before read, update and delete:
// "complete" and "create" messages often contain the other intents' keywords.
// Pattern matches carry high confidence; bare keyword matches a lower one.
// Anything else is ActionNone at 0.5 confidence, which callers treat as
// ambiguous.
func (p *Parser) ParseIntent(message string) Intent {
	if strings.TrimSpace(message) == "" {
		return Intent{Action: ActionNone, Confidence: 0.1}
	}

	msg := strings.ToLower(strings.TrimSpace(message))

	ordered := []struct {
		action   Action
		patterns []*regexp.Regexp
	}{
		{ActionComplete, p.completePatterns},
		{ActionCreate, p.createPatterns},
		{ActionRead, p.readPatterns},
		{ActionUpdate, p.updatePatterns},
		{ActionDelete, p.deletePatterns},
	}
	for _, candidate := range ordered {
		for _, re := range candidate.patterns {
			if re.MatchString(msg) {
				return Intent{Action: candidate.action, Confidence: 0.95}
			}
		}
	}

	keywords := []struct {
		action Action
		words  []string
	}{
		{ActionComplete, []string{"complete", "done", "finish"}},
		{ActionCreate, []string{"add", "create", "new"}},
		{ActionRead, []string{"show", "list", "view", "see"}},
		{ActionUpdate, []string{"update", "edit", "change"}},
		{ActionDelete, []string{"delete", "remove"}},
	}
	for _, candidate := range keywords {
		for _, word := range candidate.words {
			if strings.Contains(msg, word) {
				return Intent{Action: candidate.action, Confidence: 0.8}
			}
		}
	}

	return Intent{Action: ActionNone, Confidence: 0.5}
}

// ExtractTitle extracts a new task title from a create message.
// Falls back to the whole message when no create pattern matches.
func (p *Parser) ExtractTitle(message string) string {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return ""
	}

	for _, re := range p.createPatterns {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		title := m[len(m)-1]
		return capitalize(strings.Trim(strings.TrimSpace(title), `'"`))
	}

	return capitalize(strings.Trim(strings.TrimSpace(message), `'"`))
}

// ExtractNewTitle extracts the replacement title from an update message
// ("change X to Y" yields "Y"). Returns "" when the message carries none.
func (p *Parser) ExtractNewTitle(message string) string {
	words := strings.Fields(strings.ToLower(message))
	for i, w := range words {
		if w == "to" && i+1 < len(words) {
			return strings.Join(words[i+1:], " ")
		}
	}
	return ""
}

var upperCaser = cases.Upper(language.English)

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return upperCaser.String(string(r)) + strings.ToLower(s[size:])
}
