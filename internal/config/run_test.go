package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	payload := []byte("synchronization: 3.5\nend: 84.0\nresult_path: " + dir + "\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	run, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if run.Synchronization != 3.5 {
		t.Fatalf("expected synchronization 3.5, got %v", run.Synchronization)
	}
	if run.StepSave != 1 {
		t.Fatalf("expected default step_save 1, got %d", run.StepSave)
	}
	if run.LevelLog != 1 {
		t.Fatalf("expected default level_log 1, got %d", run.LevelLog)
	}
	if run.Mode() != ModePlain {
		t.Fatalf("expected plain mode, got %s", run.Mode())
	}
	if run.NbStep() != 24 {
		t.Fatalf("expected 24 windows, got %d", run.NbStep())
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	payload := []byte("synchronization: 2.0\nend: 10.0\nresult_path: /tmp/r\nstep_saev: 3\n")
	if _, err := Decode(payload); err == nil {
		t.Fatal("expected unknown key to fail decoding")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.ResultPath = "/tmp/r"

	cases := []struct {
		name    string
		mutate  func(*Run)
		wantErr string
	}{
		{name: "valid", mutate: func(r *Run) {}},
		{
			name:    "zero synchronization",
			mutate:  func(r *Run) { r.Synchronization = 0 },
			wantErr: "synchronization",
		},
		{
			name:    "negative end",
			mutate:  func(r *Run) { r.End = -1 },
			wantErr: "end",
		},
		{
			name:    "zero step save",
			mutate:  func(r *Run) { r.StepSave = 0 },
			wantErr: "step_save",
		},
		{
			name:    "level log out of range",
			mutate:  func(r *Run) { r.LevelLog = 5 },
			wantErr: "level_log",
		},
		{
			name:    "conflicting modes",
			mutate:  func(r *Run) { r.CoSimulation = true; r.Record = true },
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing result path",
			mutate:  func(r *Run) { r.ResultPath = "" },
			wantErr: "result_path",
		},
		{
			name:    "co-simulation without consumer ranks",
			mutate:  func(r *Run) { r.CoSimulation = true; r.ConsumerRanks = 0 },
			wantErr: "consumer_ranks",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			run := valid
			tc.mutate(&run)
			err := run.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNbStepRoundsUp(t *testing.T) {
	run := Default()
	run.Synchronization = 3
	run.End = 7
	if run.NbStep() != 3 {
		t.Fatalf("expected 3 windows, got %d", run.NbStep())
	}
	run.End = 6
	if run.NbStep() != 2 {
		t.Fatalf("expected 2 windows, got %d", run.NbStep())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	run := Default()
	run.ResultPath = dir
	run.CoSimulation = true
	run.Ranks = 2

	path := filepath.Join(dir, "run_config.yaml")
	if err := run.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Mode() != ModeCoSimulation {
		t.Fatalf("expected co-simulation mode, got %s", loaded.Mode())
	}
	if loaded.Ranks != 2 {
		t.Fatalf("expected 2 ranks, got %d", loaded.Ranks)
	}
}
