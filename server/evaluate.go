package server

import (
	"log/slog"
	"sort"
	"time"
)

// BackupObject is one backup file in the bucket, as reported by the object
// lister. LastModified is in UTC.
type BackupObject struct {
	Key          string
	LastModified time.Time
}

// objectsToDelete applies a retention policy to the objects of one folder and
// returns the keys that should be deleted. The most recently modified
// policy.MinBackupsToKeep objects are always retained, regardless of age.
// Every other object is deleted once it is strictly older than
// policy.DaysToKeep days.
//
// Ages are whole days truncated from the duration since last modification,
// not calendar days: an object uploaded 25 hours ago is one day old.
func objectsToDelete(objects []BackupObject, policy RetentionPolicy, now time.Time) []string {
	if len(objects) == 0 {
		slog.Info("No objects found", "folder", policy.Folder)

		return nil
	}

	// Sort newest first. The stable sort keeps the listing order for equal
	// timestamps, so the result is deterministic for a fixed listing.
	sorted := make([]BackupObject, len(objects))
	copy(sorted, objects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})

	var toDelete []string

	for idx, obj := range sorted {
		// Always keep the last N backups
		if idx < policy.MinBackupsToKeep {
			slog.Debug("Keeping object", "key", obj.Key, "reason", "minimum backups", "min_backups_to_keep", policy.MinBackupsToKeep)

			continue
		}

		ageDays := int(now.Sub(obj.LastModified) / (24 * time.Hour))

		if ageDays > policy.DaysToKeep {
			slog.Info("Marking object for deletion", "key", obj.Key, "age_days", ageDays, "days_to_keep", policy.DaysToKeep)
			toDelete = append(toDelete, obj.Key)
		} else {
			slog.Debug("Keeping object", "key", obj.Key, "age_days", ageDays, "days_to_keep", policy.DaysToKeep)
		}
	}

	return toDelete
}
