package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"studio_app_echo/internal/models"
)

// History statuses recorded per attempt
const (
	HistoryStatusSuccess         = "success"
	HistoryStatusFailure         = "failure"
	HistoryStatusHandlerNotFound = "handler_not_found"
)

// Runner executes due scheduled tasks
type Runner struct {
	db       *gorm.DB
	registry *Registry
	deps     Deps
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry, deps Deps, logger *zap.SugaredLogger) *Runner {
	if deps.DB == nil {
		deps.DB = db
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Runner{db: db, registry: registry, deps: deps, logger: logger, now: time.Now}
}

// RunDue executes every active task whose due time has passed and returns how many were run
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due ASC").
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	if len(pending) == 0 {
		r.logger.Debugw("No pending tasks found")
		return 0, nil
	}
	r.logger.Infow("Found pending tasks", "count", len(pending))

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.execute(ctx, task)
		ran++
	}
	return ran, nil
}

// execute runs task up to MaxAttempt times, stopping at the first success.
// One-time tasks end done or failure; recurring tasks move to their next occurrence either way.
func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	log := r.logger.With("task_id", task.ID, "task_name", task.TaskName)
	// bookkeeping must land even when shutdown cancels ctx mid-run
	store := r.db.WithContext(context.WithoutCancel(ctx))

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warnw("Task handler not found, marking as failure")
		now := r.now()
		if err := store.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		}).Error; err != nil {
			log.Errorw("Failed to update task", "error", err)
		}
		if err := store.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          HistoryStatusHandlerNotFound,
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		}).Error; err != nil {
			log.Errorw("Failed to record task history", "error", err)
		}
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		lastRun time.Time
		runErr  error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		lastRun = r.now()
		start := time.Now()
		result, err := handler(ctx, r.deps, task)
		runtimeMs := int(time.Since(start).Milliseconds())

		history := models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           lastRun,
			RuntimeMs:       runtimeMs,
			Status:          HistoryStatusSuccess,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          result,
		}
		if err != nil {
			history.Status = HistoryStatusFailure
			history.Result = map[string]interface{}{"error": err.Error()}
		}
		if err := store.Create(&history).Error; err != nil {
			log.Errorw("Failed to record task history", "error", err)
		}

		runErr = err
		if err == nil {
			log.Infow("Task completed", "attempt", attempt, "runtime_ms", runtimeMs)
			break
		}
		log.Warnw("Task attempt failed", "attempt", attempt, "max_attempt", maxAttempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	updates := map[string]interface{}{"last_run": &lastRun}

	switch {
	case runErr != nil && ctx.Err() != nil:
		// interrupted by shutdown; picked up again on the next run
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		next := task.NextDue(r.now())
		if next.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = next
		} else if runErr != nil {
			updates["status"] = models.ScheduledTaskStatusFailure
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	case runErr != nil:
		updates["status"] = models.ScheduledTaskStatusFailure
	default:
		updates["status"] = models.ScheduledTaskStatusDone
	}

	if err := store.Model(&task).Updates(updates).Error; err != nil {
		log.Errorw("Failed to update task", "error", err)
	}
}
