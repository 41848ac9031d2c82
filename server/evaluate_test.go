package server_test

import (
	"slices"
	"testing"
	"time"

	"github.com/backsweep/backsweep/server"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// backupAgedBy returns a backup object whose last modification lies age in
// the past relative to testNow.
func backupAgedBy(key string, age time.Duration) server.BackupObject {
	return server.BackupObject{Key: key, LastModified: testNow.Add(-age)}
}

const day = 24 * time.Hour

func TestObjectsToDelete_EmptyFolder(t *testing.T) {
	t.Parallel()

	policy := server.RetentionPolicy{Folder: "empty/", DaysToKeep: 7, MinBackupsToKeep: 3}

	toDelete := server.ObjectsToDelete(nil, policy, testNow)
	if len(toDelete) != 0 {
		t.Errorf("expected no deletions for empty folder, got %v", toDelete)
	}
}

func TestObjectsToDelete_KeepsRecentObjects(t *testing.T) {
	t.Parallel()

	objects := []server.BackupObject{
		backupAgedBy("pg/mon.dump", 1*day),
		backupAgedBy("pg/tue.dump", 2*day),
		backupAgedBy("pg/wed.dump", 3*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 7, MinBackupsToKeep: 0}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)
	if len(toDelete) != 0 {
		t.Errorf("expected no deletions for recent objects, got %v", toDelete)
	}
}

func TestObjectsToDelete_MinimumBackupsAlwaysKept(t *testing.T) {
	t.Parallel()

	// Everything is long past DaysToKeep; only the minimum survives.
	objects := []server.BackupObject{
		backupAgedBy("pg/1.dump", 100*day),
		backupAgedBy("pg/2.dump", 200*day),
		backupAgedBy("pg/3.dump", 300*day),
		backupAgedBy("pg/4.dump", 400*day),
		backupAgedBy("pg/5.dump", 500*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 7, MinBackupsToKeep: 3}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)

	want := []string{"pg/4.dump", "pg/5.dump"}
	if !slices.Equal(toDelete, want) {
		t.Errorf("toDelete = %v, want %v", toDelete, want)
	}
}

func TestObjectsToDelete_MixedAges(t *testing.T) {
	t.Parallel()

	// The two newest stay within the minimum, the 20-day object stays
	// within the age window, and only the two oldest expire.
	objects := []server.BackupObject{
		backupAgedBy("pg/age5.dump", 5*day),
		backupAgedBy("pg/age10.dump", 10*day),
		backupAgedBy("pg/age20.dump", 20*day),
		backupAgedBy("pg/age35.dump", 35*day),
		backupAgedBy("pg/age40.dump", 40*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 30, MinBackupsToKeep: 2}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)

	want := []string{"pg/age35.dump", "pg/age40.dump"}
	if !slices.Equal(toDelete, want) {
		t.Errorf("toDelete = %v, want %v", toDelete, want)
	}
}

func TestObjectsToDelete_MinimumCoversAllExpired(t *testing.T) {
	t.Parallel()

	// All three are twice as old as the age window, but the minimum spans
	// the whole folder.
	objects := []server.BackupObject{
		backupAgedBy("pg/1.dump", 60*day),
		backupAgedBy("pg/2.dump", 60*day),
		backupAgedBy("pg/3.dump", 60*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 30, MinBackupsToKeep: 3}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)
	if len(toDelete) != 0 {
		t.Errorf("expected no deletions, got %v", toDelete)
	}
}

func TestObjectsToDelete_AgeBoundary(t *testing.T) {
	t.Parallel()

	// Ages are whole days truncated from the modification delta: an object
	// becomes deletable only once its age strictly exceeds DaysToKeep.
	objects := []server.BackupObject{
		backupAgedBy("pg/exact.dump", 7*day),
		backupAgedBy("pg/partial.dump", 7*day+23*time.Hour),
		backupAgedBy("pg/over.dump", 8*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 7, MinBackupsToKeep: 0}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)

	want := []string{"pg/over.dump"}
	if !slices.Equal(toDelete, want) {
		t.Errorf("toDelete = %v, want %v", toDelete, want)
	}
}

func TestObjectsToDelete_TruncatedDayAges(t *testing.T) {
	t.Parallel()

	// 25 hours is one day old, not two.
	objects := []server.BackupObject{backupAgedBy("pg/a.dump", 25*time.Hour)}

	kept := server.ObjectsToDelete(objects, server.RetentionPolicy{Folder: "pg/", DaysToKeep: 1}, testNow)
	if len(kept) != 0 {
		t.Errorf("25h-old object deleted with days_to_keep=1: %v", kept)
	}

	deleted := server.ObjectsToDelete(objects, server.RetentionPolicy{Folder: "pg/", DaysToKeep: 0}, testNow)
	if want := []string{"pg/a.dump"}; !slices.Equal(deleted, want) {
		t.Errorf("toDelete = %v, want %v", deleted, want)
	}
}

func TestObjectsToDelete_ZeroMinimumHonored(t *testing.T) {
	t.Parallel()

	objects := []server.BackupObject{
		backupAgedBy("pg/new.dump", 1*time.Hour),
		backupAgedBy("pg/old.dump", 3*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 0, MinBackupsToKeep: 0}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)

	// Only the hour-old object is zero days old.
	want := []string{"pg/old.dump"}
	if !slices.Equal(toDelete, want) {
		t.Errorf("toDelete = %v, want %v", toDelete, want)
	}
}

func TestObjectsToDelete_EqualTimestampsKeepListingOrder(t *testing.T) {
	t.Parallel()

	// Three candidates share a timestamp; the stable sort keeps their
	// listing order, so the minimum window admits the first two.
	objects := []server.BackupObject{
		backupAgedBy("pg/a.dump", 30*day),
		backupAgedBy("pg/b.dump", 30*day),
		backupAgedBy("pg/c.dump", 30*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 7, MinBackupsToKeep: 2}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)

	want := []string{"pg/c.dump"}
	if !slices.Equal(toDelete, want) {
		t.Errorf("toDelete = %v, want %v", toDelete, want)
	}
}

func TestObjectsToDelete_ListingOrderIrrelevant(t *testing.T) {
	t.Parallel()

	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 7, MinBackupsToKeep: 2}

	ordered := []server.BackupObject{
		backupAgedBy("pg/newest.dump", 1*day),
		backupAgedBy("pg/middle.dump", 10*day),
		backupAgedBy("pg/oldest.dump", 20*day),
	}
	shuffled := []server.BackupObject{ordered[2], ordered[0], ordered[1]}

	want := server.ObjectsToDelete(ordered, policy, testNow)

	got := server.ObjectsToDelete(shuffled, policy, testNow)
	if !slices.Equal(got, want) {
		t.Errorf("shuffled listing changed the outcome: got %v, want %v", got, want)
	}
}

func TestObjectsToDelete_InputNotMutated(t *testing.T) {
	t.Parallel()

	objects := []server.BackupObject{
		backupAgedBy("pg/oldest.dump", 20*day),
		backupAgedBy("pg/newest.dump", 1*day),
		backupAgedBy("pg/middle.dump", 10*day),
	}
	snapshot := slices.Clone(objects)

	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 7, MinBackupsToKeep: 1}
	server.ObjectsToDelete(objects, policy, testNow)

	if !slices.Equal(objects, snapshot) {
		t.Errorf("input slice reordered: %v, want %v", objects, snapshot)
	}
}

func TestObjectsToDelete_OldestLastInResult(t *testing.T) {
	t.Parallel()

	// Deletions come out in evaluation order, newest candidate first.
	objects := []server.BackupObject{
		backupAgedBy("pg/5.dump", 5*day),
		backupAgedBy("pg/2.dump", 2*day),
		backupAgedBy("pg/4.dump", 4*day),
		backupAgedBy("pg/1.dump", 1*day),
		backupAgedBy("pg/3.dump", 3*day),
	}
	policy := server.RetentionPolicy{Folder: "pg/", DaysToKeep: 1, MinBackupsToKeep: 1}

	toDelete := server.ObjectsToDelete(objects, policy, testNow)

	want := []string{"pg/2.dump", "pg/3.dump", "pg/4.dump", "pg/5.dump"}
	if !slices.Equal(toDelete, want) {
		t.Errorf("toDelete = %v, want %v", toDelete, want)
	}
}
