package openai

import (
	"os"
	"strings"

	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// TaskType partitions model choice by workload.
type TaskType string

const (
	TaskExtract   TaskType = "extract"
	TaskSynthesis TaskType = "synthesis"
	TaskVoice     TaskType = "voice"
	TaskChatFast  TaskType = "chat_fast"
)

// ModelRouter resolves the model id for a task type. Per-task overrides come
// from MODEL_EXTRACT, MODEL_SYNTHESIS, MODEL_VOICE, MODEL_CHAT_FAST.
type ModelRouter struct {
	log      *logger.Logger
	client   Client
	fallback string
	byTask   map[TaskType]string
}

func NewModelRouter(log *logger.Logger, client Client) *ModelRouter {
	fallback := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	byTask := map[TaskType]string{}
	for task, env := range map[TaskType]string{
		TaskExtract:   "MODEL_EXTRACT",
		TaskSynthesis: "MODEL_SYNTHESIS",
		TaskVoice:     "MODEL_VOICE",
		TaskChatFast:  "MODEL_CHAT_FAST",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			byTask[task] = v
		}
	}
	return &ModelRouter{
		log:      log.With("service", "ModelRouter"),
		client:   client,
		fallback: fallback,
		byTask:   byTask,
	}
}

func (r *ModelRouter) ModelFor(task TaskType) string {
	if r == nil {
		return ""
	}
	if m, ok := r.byTask[task]; ok {
		return m
	}
	return r.fallback
}

func (r *ModelRouter) Client() Client {
	if r == nil {
		return nil
	}
	return r.client
}
