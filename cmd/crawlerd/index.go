package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/model"
)

// loggingIndex satisfies worker.TextIndex and worker.VectorIndex by logging
// what it receives. It stands in for the external text/vector indexes
// described in the external-interfaces contract, which this repository does
// not own; operators wire a real implementation at this seam.
type loggingIndex struct {
	log zerolog.Logger
}

func (l *loggingIndex) IndexDocuments(_ context.Context, pages []model.CrawledPage) error {
	for _, p := range pages {
		l.log.Info().Str("id", p.ID).Str("url", p.URL).Str("title", p.Title).Msg("indexed page (text)")
	}
	return nil
}

func (l *loggingIndex) IndexImages(_ context.Context, images []model.ExtractedImage) error {
	for _, img := range images {
		l.log.Info().Str("id", img.ID).Str("image_url", img.ImageURL).Msg("indexed image (text)")
	}
	return nil
}

func (l *loggingIndex) IndexPage(_ context.Context, id, url, title, content string) error {
	l.log.Debug().Str("id", id).Str("url", url).Msg("indexed page (vector)")
	return nil
}

func (l *loggingIndex) IndexImage(_ context.Context, id, imageURL, sourceURL, figcaption, altText, title, pageTitle, domain string) error {
	l.log.Debug().Str("id", id).Str("image_url", imageURL).Msg("indexed image (vector)")
	return nil
}
