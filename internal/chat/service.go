package chat

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/taskbox/taskbox/internal/database"
	"github.com/taskbox/taskbox/internal/models"
)

// Result is the assistant's answer to one message.
type Result struct {
	Reply        string        `json:"reply"`
	Action       Action        `json:"action_performed"`
	UpdatedTasks []models.Todo `json:"updated_tasks"`
	Success      bool          `json:"success"`
}

type taskStore interface {
	TodosByUser(ctx context.Context, userID uuid.UUID, filter database.TodoFilter) ([]models.Todo, error)
	CreateTodo(ctx context.Context, userID uuid.UUID, t database.NewTodo) (models.Todo, error)
	UpdateTodo(ctx context.Context, todoID, userID uuid.UUID, u database.TodoUpdate) (models.Todo, error)
	DeleteTodo(ctx context.Context, todoID, userID uuid.UUID) error
	AppendChatRecord(ctx context.Context, record models.ChatRecord) error
}

// Service processes chat messages against a user's todo list.
type Service struct {
	store   taskStore
	parser  *Parser
	persona Persona
}

// NewService creates a chat service using the given store and persona.
func NewService(store taskStore, persona Persona) *Service {
	return &Service{
		store:   store,
		parser:  NewParser(),
		persona: persona,
	}
}

// Welcome returns the greeting sent when a new chat session starts.
func (s *Service) Welcome() string {
	return fmt.Sprintf("Hello! I'm %s, your friendly task assistant! How can I help you with your tasks today? 😊", s.persona.Name)
}

// confidenceThreshold is the minimum intent confidence acted upon. Below it
// the message is treated as ambiguous and answered conversationally.
const confidenceThreshold = 0.5

// ProcessMessage interprets a message for the given user, performs the
// requested task action if any, and returns the reply together with the
// refreshed task list.
//
// Task lookup failures produce an apologetic reply rather than an error: the
// assistant degrades to conversation instead of surfacing HTTP failures.
func (s *Service) ProcessMessage(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, message string) (Result, error) {
	tasks, err := s.store.TodosByUser(ctx, userID, database.TodoFilter{})
	if err != nil {
		return Result{}, fmt.Errorf("could not load tasks: %w", err)
	}

	intent := s.parser.ParseIntent(message)

	var reply string
	action := intent.Action
	if intent.Action == ActionNone || intent.Confidence < confidenceThreshold {
		reply, action = s.converse(message, tasks)
	} else {
		switch intent.Action {
		case ActionCreate:
			reply = s.createTask(ctx, userID, message)
		case ActionRead:
			reply = s.persona.FormatTaskList(tasks)
		case ActionComplete:
			reply = s.completeTask(ctx, userID, message, tasks)
		case ActionUpdate:
			reply = s.updateTask(ctx, userID, message, tasks)
		case ActionDelete:
			reply = s.deleteTask(ctx, userID, message, tasks)
		default:
			reply = s.generalReply()
		}
	}

	updated, err := s.store.TodosByUser(ctx, userID, database.TodoFilter{})
	if err != nil {
		slog.Warn("Could not refresh tasks after chat action", "user_id", userID, "err", err)
		updated = tasks
	}

	record := models.ChatRecord{
		UserID:       userID,
		UserMessage:  message,
		ChatbotReply: reply,
		SessionID:    sessionID,
	}
	if err := s.store.AppendChatRecord(ctx, record); err != nil {
		// History is best effort; the reply is still valid.
		slog.Warn("Could not store chat record", "user_id", userID, "err", err)
	}

	return Result{
		Reply:        reply,
		Action:       action,
		UpdatedTasks: updated,
		Success:      true,
	}, nil
}

func (s *Service) createTask(ctx context.Context, userID uuid.UUID, message string) string {
	title := s.parser.ExtractTitle(message)
	if title == "" {
		return fmt.Sprintf("I couldn't understand the task you want to add. Could you please rephrase that? %s", s.persona.PositiveEmoji())
	}

	_, err := s.store.CreateTodo(ctx, userID, database.NewTodo{
		Title:    title,
		Priority: models.PriorityMedium,
		Category: "Personal",
	})
	if err != nil {
		slog.Error("Chat task creation failed", "user_id", userID, "err", err)
		return fmt.Sprintf("I'm sorry, I couldn't add that task right now. Could you try again? %s", s.persona.PositiveEmoji())
	}

	return fmt.Sprintf("Great! I've added '%s' to your task list. You've got this! %s", title, s.persona.PositiveEmoji())
}

func (s *Service) completeTask(ctx context.Context, userID uuid.UUID, message string, tasks []models.Todo) string {
	task, ok := findTaskInMessage(message, tasks)
	if !ok {
		return fmt.Sprintf("I couldn't find that task in your list. %s", s.persona.FormatTaskList(tasks))
	}

	completed := true
	if _, err := s.store.UpdateTodo(ctx, task.ID, userID, database.TodoUpdate{IsCompleted: &completed}); err != nil {
		slog.Error("Chat task completion failed", "user_id", userID, "todo_id", task.ID, "err", err)
		return fmt.Sprintf("I'm sorry, I couldn't update that task right now. Could you try again? %s", s.persona.PositiveEmoji())
	}

	return fmt.Sprintf("Awesome job! I've marked '%s' as completed. Way to go! 🎉", task.Title)
}

func (s *Service) updateTask(ctx context.Context, userID uuid.UUID, message string, tasks []models.Todo) string {
	task, ok := findTaskInMessage(message, tasks)
	newTitle := s.parser.ExtractNewTitle(message)
	if !ok || newTitle == "" {
		return fmt.Sprintf("I couldn't understand which task to update or what the new details should be. Could you please clarify? %s", s.persona.PositiveEmoji())
	}

	if _, err := s.store.UpdateTodo(ctx, task.ID, userID, database.TodoUpdate{Title: &newTitle}); err != nil {
		slog.Error("Chat task update failed", "user_id", userID, "todo_id", task.ID, "err", err)
		return fmt.Sprintf("I'm sorry, I couldn't update that task right now. Could you try again? %s", s.persona.PositiveEmoji())
	}

	return fmt.Sprintf("Got it! I've updated '%s' to '%s'. Looking good! ✨", task.Title, newTitle)
}

func (s *Service) deleteTask(ctx context.Context, userID uuid.UUID, message string, tasks []models.Todo) string {
	task, ok := findTaskInMessage(message, tasks)
	if !ok {
		return fmt.Sprintf("I couldn't find that task in your list. %s", s.persona.FormatTaskList(tasks))
	}

	if err := s.store.DeleteTodo(ctx, task.ID, userID); err != nil {
		slog.Error("Chat task deletion failed", "user_id", userID, "todo_id", task.ID, "err", err)
		return fmt.Sprintf("I'm sorry, I couldn't remove that task right now. Could you try again? %s", s.persona.PositiveEmoji())
	}

	return fmt.Sprintf("Done! I've removed '%s' from your task list. %s", task.Title, s.persona.PositiveEmoji())
}

// converse answers messages that carry no clear task intent.
func (s *Service) converse(message string, tasks []models.Todo) (reply string, action Action) {
	if isGreeting(message) {
		return s.greet(tasks), ActionNone
	}

	if reply, ok := s.answerCommonQuestion(message, tasks); ok {
		return reply, ActionNone
	}

	// The parser was ambiguous, but a clear request to view tasks is still
	// worth honoring with a keyword fallback.
	msg := strings.ToLower(message)
	if strings.Contains(msg, "task") {
		for _, k := range []string{"show", "list", "view", "see"} {
			if strings.Contains(msg, k) {
				return s.persona.FormatTaskList(tasks), ActionRead
			}
		}
	}

	if isGuidanceRequest(message) {
		return s.guidance(tasks), ActionNone
	}

	return s.fallbackReply(message), ActionNone
}

func (s *Service) greet(tasks []models.Todo) string {
	if len(tasks) == 0 {
		return fmt.Sprintf("Hello there! 👋 I'm %s, your friendly task assistant! It looks like you don't have any tasks on your list yet. Would you like to add a new task? 😊", s.persona.Name)
	}

	completed := completedCount(tasks)
	return fmt.Sprintf("Hello! 👋 I'm %s, your friendly task assistant! You currently have %d tasks, with %d completed. How can I help you today? 😊",
		s.persona.Name, len(tasks), completed)
}

func (s *Service) generalReply() string {
	return fmt.Sprintf("Hey there! I'm %s, your friendly task assistant! 😊 I can help you add, view, update, complete, or delete tasks. Just tell me what you'd like to do!", s.persona.Name)
}

func (s *Service) fallbackReply(message string) string {
	snippet := truncateRunes(message, 30)
	responses := []string{
		fmt.Sprintf("I'm not quite sure what you mean by '%s...'. Could you rephrase that? I can help with adding, viewing, updating, completing, or deleting tasks! 😊", snippet),
		"Sorry, I didn't quite understand that. You can ask me to add, view, update, complete, or delete tasks. What would you like to do? 🤔",
		"Hmm, I'm having trouble understanding your request. Try telling me something like 'Add buy groceries' or 'Show my tasks'. I'm here to help! 💪",
	}
	return responses[rand.Intn(len(responses))]
}

// truncateRunes cuts s to at most limit runes, never splitting a multi-byte
// character.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func (s *Service) guidance(tasks []models.Todo) string {
	if len(tasks) == 0 {
		return "It looks like you don't have any tasks on your list right now! " +
			"That's a great opportunity to start fresh. 🌟 " +
			"Consider adding tasks that align with your goals for today. " +
			"Remember, even small steps lead to big achievements! 💪 " +
			"What would you like to accomplish today? 😊"
	}

	completed := completedCount(tasks)
	total := len(tasks)
	switch completed {
	case total:
		return fmt.Sprintf("Congratulations! You've completed all %d of your tasks! 🎉 "+
			"Take a moment to celebrate your accomplishments. "+
			"What new goals would you like to set for yourself? 🌟", total)
	case 0:
		return fmt.Sprintf("I see you have several tasks to tackle! Here's a tip: "+
			"Start with the most important or urgent one to build momentum. "+
			"Breaking larger tasks into smaller steps can make them feel more manageable. "+
			"You've got this! 💪 "+
			"You currently have %d tasks on your list. "+
			"Which one feels most important to start with? 😊", total)
	default:
		return fmt.Sprintf("Great progress! You've completed %d out of %d tasks. "+
			"That means you have %d tasks left to conquer! 🌟 "+
			"Keep up the excellent work. Remember to take breaks when needed "+
			"and celebrate each completed task along the way. 🎉 "+
			"What would you like to focus on next? 💪", completed, total, total-completed)
	}
}

func (s *Service) answerCommonQuestion(message string, tasks []models.Todo) (reply string, ok bool) {
	msg := strings.ToLower(strings.TrimSpace(message))
	containsAny := func(phrases ...string) bool {
		for _, p := range phrases {
			if strings.Contains(msg, p) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("how are you", "how do you do", "how's it going", "how are things"):
		return "I'm doing great, thank you for asking! 😊 I'm here and ready to help you manage your tasks. How can I assist you today?", true
	case containsAny("what can you do", "help", "what do you do", "commands", "features"):
		return "I'm " + s.persona.Name + ", your friendly task assistant! I can help you with:\n" +
			"• Add new tasks (e.g., 'Add buy groceries')\n" +
			"• View your tasks (e.g., 'Show my tasks')\n" +
			"• Update tasks (e.g., 'Change buy groceries to buy groceries and milk')\n" +
			"• Complete tasks (e.g., 'Complete buy groceries')\n" +
			"• Delete tasks (e.g., 'Delete buy groceries')\n" +
			"Just tell me what you'd like to do! 😊", true
	case containsAny("who are you", "what is your name", "what's your name", "introduce yourself"):
		return fmt.Sprintf("I'm %s, your friendly task management assistant! 🤖 I help you organize and track your tasks. Nice to meet you! 😊", s.persona.Name), true
	case containsAny("thank you", "thanks"):
		return "You're very welcome! 😊 I'm always here to help. Is there anything else I can do for you?", true
	case containsAny("status", "progress", "how am i doing"):
		if len(tasks) == 0 {
			return "You don't have any tasks yet, so you're doing great by staying organized! 🌟 Would you like to add your first task?", true
		}
		completed := completedCount(tasks)
		if completed == len(tasks) {
			return fmt.Sprintf("Excellent progress! You've completed all %d of your tasks! 🎉 Keep up the great work!", len(tasks)), true
		}
		return fmt.Sprintf("You're doing great! You've completed %d out of %d tasks. Keep it up! 💪", completed, len(tasks)), true
	}

	return "", false
}

var greetings = []string{
	"hi", "hello", "hey", "greetings", "good morning", "good afternoon",
	"good evening", "good day", "howdy",
}

func isGreeting(message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	for _, g := range greetings {
		if strings.Contains(msg, g) {
			return true
		}
	}
	return false
}

var guidanceIndicators = []string{
	"suggest", "recommend", "advice", "tips", "help me organize",
	"how should", "what should", "guide", "guidance", "productivity",
	"better way", "improve", "assist", "motivate", "encourage",
}

func isGuidanceRequest(message string) bool {
	msg := strings.ToLower(message)
	for _, indicator := range guidanceIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// findTaskInMessage locates the first task whose title appears in the message.
func findTaskInMessage(message string, tasks []models.Todo) (models.Todo, bool) {
	msg := strings.ToLower(message)
	for _, t := range tasks {
		if strings.Contains(msg, strings.ToLower(t.Title)) {
			return t, true
		}
	}
	return models.Todo{}, false
}

func completedCount(tasks []models.Todo) int {
	count := 0
	for _, t := range tasks {
		if t.IsCompleted {
			count++
		}
	}
	return count
}
