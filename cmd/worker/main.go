package main

import (
	"context"
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/activities"
	"github.com/clintrovert/praxis/internal/config"
	"github.com/clintrovert/praxis/internal/github"
	"github.com/clintrovert/praxis/internal/grading"
	"github.com/clintrovert/praxis/internal/store"
	workflows "github.com/clintrovert/praxis/internal/temporal/workflows"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort:  env.Address,
		Namespace: env.Namespace,
	})
	if err != nil {
		logger.Fatal("failed to create temporal client", zap.Error(err))
	}
	defer c.Close()

	// Create GitHub client for submission fetching
	githubClient := github.NewClient(env.GitHubEnv.Token, env.WorkspaceDir, logger)

	// Create AI reviewer
	reviewer := grading.NewAIReviewer(env.OpenAIAPIKey, env.OpenAIModel, logger)

	// Connect to the shared store for grade persistence
	st, err := store.Connect(ctx, env.URL, logger)
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer st.Close()

	// Initialize activities
	activities.SetSubmissionActivities(activities.NewSubmissionActivities(githubClient, logger))
	activities.SetGradingActivities(activities.NewGradingActivities(reviewer, logger))
	activities.SetStoreActivities(activities.NewStoreActivities(st, logger))

	// Create worker
	w := worker.New(c, env.TaskQueue, worker.Options{})

	// Register workflow
	w.RegisterWorkflow(workflows.GradingWorkflow)

	// Register activities
	w.RegisterActivity(activities.FetchSubmissionActivity)
	w.RegisterActivity(activities.ReviewSubmissionActivity)
	w.RegisterActivity(activities.RecordGradeActivity)
	w.RegisterActivity(activities.MarkGradingFailedActivity)

	logger.Info("starting worker",
		zap.String("task_queue", env.TaskQueue),
		zap.String("namespace", env.Namespace),
	)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}

	logger.Info("worker stopped")
}
