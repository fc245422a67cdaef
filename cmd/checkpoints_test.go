package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/store"
	"github.com/cwbudde/evotsp/internal/tsp"
	"github.com/spf13/cobra"
)

func testCommand(in string) (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(in))
	return cmd, &out
}

func withDataDir(t *testing.T, dir string) {
	t.Helper()
	original := checkpointDataDir
	checkpointDataDir = dir
	t.Cleanup(func() { checkpointDataDir = original })
}

func saveTestCheckpoint(t *testing.T, st *store.FSStore, jobID string, age time.Duration) {
	t.Helper()
	config := store.JobConfig{
		Cities: []tsp.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Params: solve.DefaultParams(),
	}
	cp := store.NewCheckpoint(jobID, []int{0, 1, 2, 3}, 4, 4.8, 10, config)
	cp.Timestamp = time.Now().Add(-age)
	if err := st.SaveCheckpoint(jobID, cp); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
}

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}
	if toDelete[0].JobID != "job4" || toDelete[1].JobID != "job1" {
		t.Errorf("Expected job4 then job1, got %s, %s", toDelete[0].JobID, toDelete[1].JobID)
	}
}

func TestSelectCheckpointsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}
	for _, info := range toDelete {
		if info.JobID != "job1" && info.JobID != "job4" {
			t.Errorf("Newest checkpoints should be kept, got %s selected", info.JobID)
		}
	}
}

func TestSelectCheckpointsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
	}

	// Age selects job1, count selects job1 and job2; job1 is listed once.
	toDelete := selectCheckpointsForDeletion(infos, 1, 7, now)
	if len(toDelete) != 2 {
		t.Errorf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}
}

func TestSelectCheckpointsForDeletion_NothingToDo(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{{JobID: "job1", Timestamp: now}}

	if got := selectCheckpointsForDeletion(infos, 5, 7, now); len(got) != 0 {
		t.Errorf("Expected nothing to delete, got %d", len(got))
	}
}

func TestCheckpointsListCommand_NoCheckpoints(t *testing.T) {
	withDataDir(t, t.TempDir())
	cmd, out := testCommand("")

	if err := runListCheckpoints(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No checkpoints found") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}

func TestCheckpointsListCommand_WithCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()
	st, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestCheckpoint(t, st, "test-job-id", time.Hour)
	withDataDir(t, tmpDir)

	cmd, out := testCommand("")
	if err := runListCheckpoints(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got := out.String()
	for _, want := range []string{"test-job-id", "1 hour ago", "ga", "4.0000", "Total checkpoints: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in output:\n%s", want, got)
		}
	}
}

func TestCheckpointsShowCommand(t *testing.T) {
	tmpDir := t.TempDir()
	st, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestCheckpoint(t, st, "job-show", time.Minute)
	withDataDir(t, tmpDir)

	cmd, out := testCommand("")
	if err := runShowCheckpoint(cmd, []string{"job-show"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "4.8000 -> 4.0000") || !strings.Contains(out.String(), "yes") {
		t.Errorf("Unexpected output:\n%s", out.String())
	}

	if err := runShowCheckpoint(cmd, []string{"missing"}); err == nil {
		t.Error("Expected error for missing checkpoint")
	}
}

func TestCheckpointsCleanCommand_NoFlags(t *testing.T) {
	withDataDir(t, t.TempDir())
	keepLast, olderThanDays = 0, 0

	cmd, _ := testCommand("")
	if err := runCleanCheckpoints(cmd, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestCheckpointsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()
	st, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestCheckpoint(t, st, "old-job", 30*24*time.Hour)
	saveTestCheckpoint(t, st, "new-job", time.Hour)
	withDataDir(t, tmpDir)

	keepLast, olderThanDays, forceClean = 0, 7, true
	defer func() { olderThanDays, forceClean = 0, false }()

	cmd, _ := testCommand("")
	if err := runCleanCheckpoints(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := st.LoadCheckpoint("old-job"); err == nil {
		t.Error("Expected old checkpoint to be deleted")
	}
	if _, err := st.LoadCheckpoint("new-job"); err != nil {
		t.Errorf("Expected new checkpoint to survive: %v", err)
	}
}

func TestCheckpointsCleanCommand_Aborted(t *testing.T) {
	tmpDir := t.TempDir()
	st, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestCheckpoint(t, st, "old-job", 30*24*time.Hour)
	withDataDir(t, tmpDir)

	keepLast, olderThanDays, forceClean = 0, 7, false
	defer func() { olderThanDays = 0 }()

	cmd, out := testCommand("n\n")
	if err := runCleanCheckpoints(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("Expected abort, got:\n%s", out.String())
	}
	if _, err := st.LoadCheckpoint("old-job"); err != nil {
		t.Errorf("Checkpoint should survive an aborted clean: %v", err)
	}
}
