package chat

import (
	_ "embed"
	"fmt"
	"math/rand"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/taskbox/taskbox/internal/models"
)

//go:embed persona.toml
var defaultPersona []byte

// Persona holds the assistant's name and the emoji sets used to decorate
// replies. A custom persona can be loaded from a TOML file; the built-in
// default is embedded.
type Persona struct {
	Name           string            `toml:"name"`
	PositiveEmojis []string          `toml:"positiveEmojis"`
	StatusEmojis   map[string]string `toml:"statusEmojis"`
	PriorityEmojis map[string]string `toml:"priorityEmojis"`
	CategoryEmojis map[string]string `toml:"categoryEmojis"`
}

// DefaultPersona returns the embedded persona.
func DefaultPersona() Persona {
	var p Persona
	// The embedded file is validated by tests, decoding cannot fail at runtime.
	if err := toml.Unmarshal(defaultPersona, &p); err != nil {
		panic(fmt.Sprintf("invalid embedded persona: %v", err))
	}
	return p
}

// LoadPersona reads a persona from the TOML file at path.
func LoadPersona(path string) (Persona, error) {
	var p Persona
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Persona{}, fmt.Errorf("could not load persona file: %w", err)
	}
	if p.Name == "" {
		return Persona{}, fmt.Errorf("persona file %s does not set a name", path)
	}
	return p, nil
}

// PositiveEmoji returns a random positive emoji.
func (p Persona) PositiveEmoji() string {
	if len(p.PositiveEmojis) == 0 {
		return "😊"
	}
	return p.PositiveEmojis[rand.Intn(len(p.PositiveEmojis))]
}

// StatusEmoji returns the emoji for a task completion status.
func (p Persona) StatusEmoji(completed bool) string {
	if completed {
		return p.StatusEmojis["completed"]
	}
	return p.StatusEmojis["pending"]
}

// PriorityEmoji returns the emoji for a task priority.
func (p Persona) PriorityEmoji(priority models.Priority) string {
	if e, ok := p.PriorityEmojis[strings.ToLower(string(priority))]; ok {
		return e
	}
	return p.PriorityEmojis["default"]
}

// CategoryEmoji returns the emoji for a task category.
func (p Persona) CategoryEmoji(category string) string {
	if e, ok := p.CategoryEmojis[strings.ToLower(category)]; ok {
		return e
	}
	return p.CategoryEmojis["default"]
}

// FormatTaskList formats todos into a numbered, emoji-decorated list.
func (p Persona) FormatTaskList(todos []models.Todo) string {
	if len(todos) == 0 {
		return "You don't have any tasks on your list right now! Would you like to add one? 😊"
	}

	lines := []string{"Here are your current tasks:"}
	for i, t := range todos {
		line := fmt.Sprintf("%d. %s %s %s%s",
			i+1, p.StatusEmoji(t.IsCompleted), t.Title,
			p.PriorityEmoji(t.Priority), p.CategoryEmoji(t.Category))
		if t.DueDate != nil {
			line += fmt.Sprintf(" 📅 %s", t.DueDate.Format("2006-01-02"))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
