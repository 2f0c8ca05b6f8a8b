package tasks

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
)

// Deps are the collaborators handed to every task handler
type Deps struct {
	DB        *gorm.DB
	Mailer    services.Mailer
	Messenger services.Messenger
	Logger    *zap.SugaredLogger

	Currency     string
	StudioEmail  string
	StudioChatID string
}

// TaskHandler executes one attempt of a scheduled task and returns a result stored in its history
type TaskHandler func(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error)

// Registry stores the mapping of task names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]TaskHandler)}
}

// Register adds a handler for a task name
func (r *Registry) Register(name string, handler TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Get retrieves a handler for a task name
func (r *Registry) Get(name string) (TaskHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}
