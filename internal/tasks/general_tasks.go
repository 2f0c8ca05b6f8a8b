package tasks

import (
	"context"

	"studio_app_echo/internal/models"
)

// LogInfoTaskDef writes its message argument to the worker log; handy for checking the worker is alive
type LogInfoTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

// HandleExecution handles logging information
func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, deps Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	deps.Logger.Infow("log_info task", "task_id", task.ID, "message", message)

	return map[string]interface{}{
		"message": message,
	}, nil
}

// LogInfoTask is the singleton instance of LogInfoTaskDef
var LogInfoTask = &LogInfoTaskDef{}
