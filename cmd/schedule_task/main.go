package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"

	"studio_app_echo/internal/config"
	"studio_app_echo/internal/logging"
	"studio_app_echo/internal/models"
	"studio_app_echo/internal/services"
	"studio_app_echo/internal/tasks"
)

func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (format: 2006-01-02 15:04 local, or RFC3339; default: now)")
	taskType := flag.String("tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RRULE for recurring tasks, e.g. FREQ=DAILY;BYHOUR=9")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts per run")

	flag.Parse()

	if *taskName == "" {
		fmt.Println("Usage: schedule_task -task_name <name> [-arguments <json_args>] [-due <YYYY-MM-DD HH:MM>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry)
	if _, ok := registry.Get(*taskName); !ok {
		log.Fatalf("Unknown task %q", *taskName)
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatalf("Invalid JSON arguments: %v", err)
	}

	due := time.Now()
	if *dueStr != "" {
		var err error
		due, err = time.Parse(time.RFC3339, *dueStr)
		if err != nil {
			due, err = time.ParseInLocation("2006-01-02 15:04", *dueStr, time.Local)
			if err != nil {
				log.Fatalf("Invalid due date format. Use '2006-01-02 15:04' (Local) or RFC3339: %v", err)
			}
		}
	}

	kind := models.ScheduledTaskType(*taskType)
	var recurringPtr *string
	switch kind {
	case models.ScheduledTaskTypeOneTime:
	case models.ScheduledTaskTypeRecurring:
		if *recurring == "" {
			log.Fatal("-recurring is required for recurring tasks")
		}
		if _, err := rrule.StrToRRule(*recurring); err != nil {
			log.Fatalf("Invalid recurring rule: %v", err)
		}
		recurringPtr = recurring
	default:
		log.Fatalf("Unknown task type %q", *taskType)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	cfg := config.FromEnv()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	logger, err := logging.NewLogger(false, "warn")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	db, err := services.InitDB(cfg.DatabaseURL, false, logger)
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, kind, *maxAttempt)
	if err != nil {
		log.Fatalf("Failed to build task: %v", err)
	}
	if err := db.Create(task).Error; err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
}
