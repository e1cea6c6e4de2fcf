package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/EngineSearch/crawler/internal/crawler"
	"github.com/EngineSearch/crawler/internal/model"
	"github.com/EngineSearch/crawler/internal/queue"
	"github.com/EngineSearch/crawler/internal/worker"
)

var queueCapacity int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the worker loop, pulling jobs from the queue until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfigAndLogger()
		if err != nil {
			return err
		}

		jobs := queue.New(log, queueCapacity)
		c := crawler.NewWithResourceConfig(log, cfg.Crawl, cfg.Resource)
		c.Start()
		defer c.Close()
		index := &loggingIndex{log: log}
		w := worker.New(log, jobs, c, index, index)

		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Warn().Msg("received shutdown signal, stopping worker loop")
			cancel()
		}()

		// seed the queue from the command line so `crawlerd worker -u ...`
		// runs a job the same way an external producer's enqueue would.
		if targetURL != "" {
			jobs.Enqueue(&model.CrawlJob{
				ID:        uuid.NewString(),
				SeedURLs:  []string{targetURL},
				MaxDepth:  cfg.Crawl.MaxDepth,
				Status:    model.JobPending,
				CreatedAt: time.Now().UTC(),
			})
		}

		go w.RunRetryLoop(ctx)
		w.Run(ctx)
		return nil
	},
}

func init() {
	workerCmd.Flags().StringVarP(&targetURL, "url", "u", "", "seed URL to enqueue on startup")
	workerCmd.Flags().IntVar(&queueCapacity, "queue-capacity", 1000, "pending job queue capacity")
}
