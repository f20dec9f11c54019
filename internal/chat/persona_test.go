package chat_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskbox/taskbox/internal/chat"
	"github.com/taskbox/taskbox/internal/models"
	"github.com/taskbox/taskbox/internal/testutils"
)

func TestDefaultPersona(t *testing.T) {
	t.Parallel()

	p := chat.DefaultPersona()
	assert.Equal(t, "Taskie", p.Name, "Embedded persona should be Taskie")
	assert.NotEmpty(t, p.PositiveEmojis, "Embedded persona should carry positive emojis")
	assert.Equal(t, "✅", p.StatusEmoji(true), "Completed tasks should get a check mark")
	assert.Equal(t, "📝", p.StatusEmoji(false), "Pending tasks should get a memo")
}

func TestLoadPersona(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content  string
		noFile   bool

		wantName string
		wantErr  bool
	}{
		"Valid persona loads": {
			content:  "name = \"Helper\"\n\n[statusEmojis]\ncompleted = \"✅\"\npending = \"📝\"\n",
			wantName: "Helper",
		},

		"Persona without a name fails": {
			content: "[statusEmojis]\ncompleted = \"✅\"\n",
			wantErr: true,
		},
		"Invalid TOML fails": {
			content: "name = [unterminated",
			wantErr: true,
		},
		"Missing file fails": {
			noFile:  true,
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "persona.toml")
			if !tc.noFile {
				require.NoError(t, os.WriteFile(path, []byte(tc.content), 0600), "Setup: could not write persona file")
			}

			p, err := chat.LoadPersona(path)
			if tc.wantErr {
				require.Error(t, err, "LoadPersona should fail")
				return
			}
			require.NoError(t, err, "LoadPersona should succeed")
			assert.Equal(t, tc.wantName, p.Name, "Persona name should be loaded")
		})
	}
}

func TestEmojiFallbacks(t *testing.T) {
	t.Parallel()

	p := chat.DefaultPersona()

	assert.Equal(t, "🔴", p.PriorityEmoji(models.PriorityHigh), "High priority should map to red")
	assert.Equal(t, "⚪", p.PriorityEmoji(models.Priority("unknown")), "Unknown priority should fall back to default")
	assert.Equal(t, "💼", p.CategoryEmoji("Work"), "Category lookup should be case insensitive")
	assert.Equal(t, "📋", p.CategoryEmoji("garden"), "Unknown category should fall back to default")

	empty := chat.Persona{Name: "Bare"}
	assert.Equal(t, "😊", empty.PositiveEmoji(), "Persona without emojis should fall back to a smile")
}

func TestFormatTaskList(t *testing.T) {
	t.Parallel()

	p := chat.DefaultPersona()
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		todos []models.Todo
	}{
		"Empty list": {},
		"Single pending task": {
			todos: []models.Todo{
				{Title: "Buy groceries", Priority: models.PriorityMedium, Category: "personal"},
			},
		},
		"Mixed tasks with due date": {
			todos: []models.Todo{
				{Title: "Finish report", Priority: models.PriorityHigh, Category: "work", DueDate: &due},
				{Title: "Read book", Priority: models.PriorityLow, Category: "study", IsCompleted: true},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := p.FormatTaskList(tc.todos)
			want := testutils.LoadWithUpdateFromGolden(t, got)
			assert.Equal(t, want, got, "Formatted task list should match golden file")
		})
	}
}
