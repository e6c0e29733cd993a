package config

import (
	"errors"
	"os"
)

// App holds the non-datastore settings: the upload bucket, the two automation
// webhooks, and the secret the worker uses to call back.
type App struct {
	Bucket             string
	GenerateWebhookURL string
	OptimizeWebhookURL string
	CallbackSecret     string
}

func LoadApp() (*App, error) {
	a := &App{
		Bucket:             os.Getenv("GCS_BUCKET"),
		GenerateWebhookURL: os.Getenv("WORKER_GENERATE_WEBHOOK_URL"),
		OptimizeWebhookURL: os.Getenv("WORKER_OPTIMIZE_WEBHOOK_URL"),
		CallbackSecret:     os.Getenv("WORKER_CALLBACK_SECRET"),
	}
	if a.Bucket == "" {
		return nil, errors.New("GCS_BUCKET environment variable is not set")
	}
	if a.GenerateWebhookURL == "" {
		return nil, errors.New("WORKER_GENERATE_WEBHOOK_URL environment variable is not set")
	}
	if a.OptimizeWebhookURL == "" {
		return nil, errors.New("WORKER_OPTIMIZE_WEBHOOK_URL environment variable is not set")
	}
	if a.CallbackSecret == "" {
		return nil, errors.New("WORKER_CALLBACK_SECRET environment variable is not set")
	}
	return a, nil
}
