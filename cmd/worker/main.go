package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/veilguard/doppel/internal/progress"
	"github.com/veilguard/doppel/internal/setup"
	"github.com/veilguard/doppel/internal/worker/purge"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// PurgeWorker removes expired cache entries and aged-out analysis data.
	PurgeWorker = "purge"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start a doppel maintenance worker",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   1,
				Usage:   "Number of workers to start",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  PurgeWorker,
				Usage: "Start purge workers",
				Action: func(ctx context.Context, c *cli.Command) error {
					runWorkers(ctx, PurgeWorker, c.Int("workers"))
					return nil
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorkers starts multiple instances of a worker type.
func runWorkers(ctx context.Context, workerType string, count int64) {
	app, err := setup.InitializeApp(ctx, WorkerLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	bars := make([]*progress.Bar, count)
	for i := range count {
		bars[i] = progress.NewBar(100, 25, fmt.Sprintf("Worker %d", i))
	}

	renderer := progress.NewRenderer(bars)
	go renderer.Render()

	var wg sync.WaitGroup

	for i := range count {
		wg.Add(1)

		go func(workerID int64) {
			defer wg.Done()

			workerLogger := app.Logger.Named(fmt.Sprintf("%s_worker_%d", workerType, workerID))
			bar := bars[workerID]

			var w interface{ Start(context.Context) }
			switch workerType {
			case PurgeWorker:
				w = purge.New(app.DB.Model(), &app.Config.Worker, bar, workerLogger)
			default:
				log.Fatalf("Invalid worker type: %s", workerType)
			}

			runWorker(ctx, w, workerLogger)
		}(i)
	}

	log.Printf("Started %d %s workers", count, workerType)
	wg.Wait()
	renderer.Stop()
	log.Println("All workers have finished. Exiting.")
}

// runWorker runs a single worker in a loop with error recovery.
func runWorker(ctx context.Context, w interface{ Start(context.Context) }, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, stopping worker")
			return
		default:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("Worker execution failed",
							zap.String("worker_type", fmt.Sprintf("%T", w)),
							zap.Any("panic", r),
						)
						logger.Info("Restarting worker in 5 seconds...")
						time.Sleep(5 * time.Second)
					}
				}()

				logger.Info("Starting worker")
				w.Start(ctx)
			}()

			select {
			case <-ctx.Done():
			default:
				logger.Warn("Worker stopped unexpectedly",
					zap.String("worker_type", fmt.Sprintf("%T", w)),
				)
				time.Sleep(5 * time.Second)
			}
		}
	}
}
