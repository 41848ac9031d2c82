package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/backsweep/backsweep/api"
	"golang.org/x/sync/errgroup"
)

// ObjectLister enumerates the backup objects under a folder prefix.
type ObjectLister interface {
	ListBackupObjects(ctx context.Context, prefix string) ([]BackupObject, error)
}

// BatchDeleter removes objects from the bucket in bounded batches and reports
// how many keys were deleted and how many failed. It must account for every
// key: deleted+failed equals the number of keys passed in.
type BatchDeleter interface {
	DeleteObjects(ctx context.Context, keys []string) (deleted, failed int)
}

// processFolder applies one retention policy: list the folder, evaluate the
// policy, delete the expired objects. A listing failure is returned as an
// error; deletion failures are part of the result counts.
func (s *Service) processFolder(ctx context.Context, policy RetentionPolicy, dryRun bool) (api.FolderResult, error) {
	slog.Info("Processing folder",
		"folder", policy.Folder,
		"days_to_keep", policy.DaysToKeep,
		"min_backups_to_keep", policy.MinBackupsToKeep,
	)

	objects, err := s.Lister.ListBackupObjects(ctx, policy.Folder)
	if err != nil {
		return api.FolderResult{}, fmt.Errorf("failed to list objects in %q: %w", policy.Folder, err)
	}

	slog.Info("Found objects", "folder", policy.Folder, "count", len(objects))

	toDelete := objectsToDelete(objects, policy, time.Now().UTC())
	slog.Info("Identified objects for deletion", "folder", policy.Folder, "count", len(toDelete))

	var deleted, failed int
	if dryRun {
		slog.Info("Dry run, skipping deletion", "folder", policy.Folder, "count", len(toDelete))
	} else {
		deleted, failed = s.Deleter.DeleteObjects(ctx, toDelete)
	}

	result := api.FolderResult{
		Folder:          policy.Folder,
		TotalObjects:    len(objects),
		ObjectsToDelete: len(toDelete),
		Deleted:         deleted,
		Failed:          failed,
	}

	slog.Info("Folder processing complete",
		"folder", result.Folder,
		"total_objects", result.TotalObjects,
		"objects_to_delete", result.ObjectsToDelete,
		"deleted", result.Deleted,
		"failed", result.Failed,
	)

	return result, nil
}

// folderResult converts a folder failure into a result row so one misbehaving
// folder never aborts the rest of the run.
func (s *Service) folderResult(ctx context.Context, policy RetentionPolicy, dryRun bool) api.FolderResult {
	result, err := s.processFolder(ctx, policy, dryRun)
	if err != nil {
		slog.Error("Failed to process folder", "folder", policy.Folder, "error", err)

		return api.FolderResult{Folder: policy.Folder, Error: err.Error()}
	}

	return result
}

// runCleanup processes every policy and aggregates the per-folder results
// into a report. Folders operate on disjoint prefixes, so with Concurrency
// above one they are processed by a bounded worker pool; results are indexed
// by policy position and the report order always matches the policy order.
func (s *Service) runCleanup(ctx context.Context, policies []RetentionPolicy, dryRun bool) *api.CleanupReport {
	results := make([]api.FolderResult, len(policies))

	if s.Concurrency > 1 {
		var group errgroup.Group
		group.SetLimit(s.Concurrency)

		for i, policy := range policies {
			group.Go(func() error {
				results[i] = s.folderResult(ctx, policy, dryRun)

				return nil
			})
		}

		// Folder failures are recorded in the results, never returned.
		_ = group.Wait()
	} else {
		for i, policy := range policies {
			results[i] = s.folderResult(ctx, policy, dryRun)
		}
	}

	report := &api.CleanupReport{
		Message: "Backup cleanup completed",
		Results: results,
	}

	if dryRun {
		report.Message = "Backup cleanup completed (dry run)"
	}

	for _, result := range results {
		report.TotalDeleted += result.Deleted
		report.TotalFailed += result.Failed
	}

	slog.Info("Backup cleanup completed",
		"folders", len(policies),
		"total_deleted", report.TotalDeleted,
		"total_failed", report.TotalFailed,
		"dry_run", dryRun,
	)

	return report
}
