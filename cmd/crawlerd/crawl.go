package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/EngineSearch/crawler/internal/crawler"
)

var (
	targetURL         string
	urlFile           string
	maxDepth          int
	maxConcurrent     int
	requestsPerSecond float64
	userAgentFlag     string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl one or more seed URLs and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfigAndLogger()
		if err != nil {
			return err
		}
		cfg.MergeCLIFlags(maxDepth, maxConcurrent, requestsPerSecond, userAgentFlag)

		seeds, err := resolveSeeds()
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			return cmd.Help()
		}

		c := crawler.NewWithResourceConfig(log, cfg.Crawl, cfg.Resource)
		c.Start()
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Crawl.TimeoutSeconds)*time.Second*time.Duration(len(seeds)*10))
		defer cancel()

		pages, images, err := c.CrawlURLs(ctx, seeds)
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}

		fmt.Println("==================================================")
		fmt.Println("crawl summary")
		fmt.Println("==================================================")
		fmt.Printf("seeds crawled:   %d\n", len(seeds))
		fmt.Printf("pages extracted: %d\n", len(pages))
		fmt.Printf("images found:    %d\n", len(images))
		fmt.Println("==================================================")

		return nil
	},
}

func resolveSeeds() ([]string, error) {
	if urlFile != "" {
		return readURLsFromFile(urlFile)
	}
	if targetURL != "" {
		return []string{targetURL}, nil
	}
	return nil, nil
}

func init() {
	crawlCmd.Flags().StringVarP(&targetURL, "url", "u", "", "target URL (required unless --url-file is given)")
	crawlCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "path to a file containing one URL per line")
	crawlCmd.Flags().IntVarP(&maxDepth, "depth", "d", 0, "max crawl depth (0 = use config default)")
	crawlCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "max concurrent requests per seed (0 = use config default)")
	crawlCmd.Flags().Float64Var(&requestsPerSecond, "requests-per-second", 0, "global requests-per-second budget (0 = use config default)")
	crawlCmd.Flags().StringVar(&userAgentFlag, "user-agent", "", "override the crawler's User-Agent")
}
