package storage

import (
	"context"
	"log/slog"
	"time"

	"habbo-sync/internal/models"
)

// FigureStore is the slice of the persistence layer the archive job
// needs.
type FigureStore interface {
	ListUnarchivedFigures(ctx context.Context, limit int) ([]models.FigureArchiveItem, error)
	MarkFigureArchived(ctx context.Context, id int64, url string) error
}

// FigureArchiveJob fills missing archive URLs for queued avatar
// updates. Archiving is best-effort; rows stay queued until an attempt
// succeeds.
type FigureArchiveJob struct {
	store   FigureStore
	storage StorageClient
	logger  *slog.Logger
}

func NewFigureArchiveJob(logger *slog.Logger, store FigureStore, storageClient StorageClient) *FigureArchiveJob {
	return &FigureArchiveJob{
		store:   store,
		storage: storageClient,
		logger:  logger,
	}
}

func (fj *FigureArchiveJob) Start() {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	// Run immediately on start
	go fj.runArchiveCycle(context.Background())

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		fj.runArchiveCycle(ctx)
		cancel()
	}
}

func (fj *FigureArchiveJob) runArchiveCycle(ctx context.Context) {
	fj.logger.Info("figure_archive_cycle_started")

	queue, err := fj.store.ListUnarchivedFigures(ctx, 100)
	if err != nil {
		fj.logger.Warn("failed_to_fetch_pending_figures", "error", err)
		return
	}

	count := 0
	for _, p := range queue {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var url string
		var archiveErr error

		switch sc := fj.storage.(type) {
		case *S3Client:
			url, archiveErr = sc.ArchiveFigure(p.Hotel, p.HabboID, p.FigureString)
		default:
			// simulador não baixa imagem; grava a URL determinística
			url, archiveErr = fj.storage.UploadFigure(p.HabboID, p.FigureString, []byte{0x89, 'P', 'N', 'G'})
		}

		if archiveErr != nil {
			fj.logger.Warn("figure_archive_failed",
				"habbo_id", p.HabboID,
				"hotel", p.Hotel,
				"error", archiveErr,
			)
			continue
		}

		if err := fj.store.MarkFigureArchived(ctx, p.ID, url); err != nil {
			fj.logger.Warn("failed_to_update_figure_url",
				"habbo_id", p.HabboID,
				"error", err,
			)
			continue
		}

		count++

		// pacing: um upload por segundo contra o habbo-imaging
		time.Sleep(1 * time.Second)
	}

	fj.logger.Info("figure_archive_cycle_completed", "processed", count)
}
