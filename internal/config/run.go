package config

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects which children an orchestrated run launches.
type Mode int

const (
	// ModePlain launches the producer simulator alone.
	ModePlain Mode = iota
	// ModeRecord launches the producer plus one storage relay per
	// published device id.
	ModeRecord
	// ModeCoSimulation launches producer, consumer, and one forwarding
	// relay per device id.
	ModeCoSimulation
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeRecord:
		return "record"
	case ModeCoSimulation:
		return "co-simulation"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Run is one run's effective configuration. It is immutable once the
// orchestrator publishes it; children read the published copy.
type Run struct {
	// Synchronization is the window length in milliseconds.
	Synchronization float64 `yaml:"synchronization"`
	// End is the total simulated time in milliseconds. The window
	// count is ceil(End / Synchronization).
	End float64 `yaml:"end"`
	// StepSave is how many completed windows accumulate between batch
	// flushes.
	StepSave int `yaml:"step_save"`
	// LevelLog is the 0-4 verbosity carried over to every child.
	LevelLog int `yaml:"level_log"`

	CoSimulation bool `yaml:"co_simulation"`
	Record       bool `yaml:"record"`

	// Ranks is the producer-side sender count; ConsumerRanks the
	// consumer side's.
	Ranks         int `yaml:"ranks"`
	ConsumerRanks int `yaml:"consumer_ranks"`

	ResultPath string `yaml:"result_path"`

	FeedCommand  []string `yaml:"feed_command"`
	SinkCommand  []string `yaml:"sink_command"`
	RelayCommand []string `yaml:"relay_command"`
}

// Default returns the configuration a run starts from before the YAML
// file is applied.
func Default() Run {
	return Run{
		Synchronization: 100,
		End:             1000,
		StepSave:        1,
		LevelLog:        1,
		Ranks:           1,
		ConsumerRanks:   1,
		FeedCommand:     []string{"tandem-feed"},
		SinkCommand:     []string{"tandem-sink"},
		RelayCommand:    []string{"tandem-relay"},
	}
}

// Load reads and strictly decodes a run configuration. Unknown keys are
// rejected so a typo cannot silently fall back to a default.
func Load(path string) (Run, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("read run config: %w", err)
	}
	run, err := Decode(payload)
	if err != nil {
		return Run{}, fmt.Errorf("decode run config %s: %w", path, err)
	}
	return run, nil
}

// Decode parses a YAML payload on top of the defaults and validates the
// result.
func Decode(payload []byte) (Run, error) {
	run := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(&run); err != nil {
		return Run{}, fmt.Errorf("invalid run config payload: %w", err)
	}
	if err := run.Validate(); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Save writes the effective configuration for children to read.
func (r Run) Save(path string) error {
	payload, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write run config: %w", err)
	}
	return nil
}

func (r Run) Validate() error {
	if r.Synchronization <= 0 {
		return fmt.Errorf("synchronization must be positive, got %v", r.Synchronization)
	}
	if r.End <= 0 {
		return fmt.Errorf("end must be positive, got %v", r.End)
	}
	if r.StepSave < 1 {
		return fmt.Errorf("step_save must be at least 1, got %d", r.StepSave)
	}
	if r.LevelLog < 0 || r.LevelLog > 4 {
		return fmt.Errorf("level_log must be between 0 and 4, got %d", r.LevelLog)
	}
	if r.Ranks < 1 {
		return fmt.Errorf("ranks must be at least 1, got %d", r.Ranks)
	}
	if r.CoSimulation && r.ConsumerRanks < 1 {
		return fmt.Errorf("consumer_ranks must be at least 1, got %d", r.ConsumerRanks)
	}
	if r.CoSimulation && r.Record {
		return fmt.Errorf("co_simulation and record are mutually exclusive")
	}
	if r.ResultPath == "" {
		return fmt.Errorf("result_path is required")
	}
	if len(r.FeedCommand) == 0 {
		return fmt.Errorf("feed_command is required")
	}
	if r.Mode() == ModeCoSimulation && len(r.SinkCommand) == 0 {
		return fmt.Errorf("sink_command is required for co-simulation")
	}
	if r.Mode() != ModePlain && len(r.RelayCommand) == 0 {
		return fmt.Errorf("relay_command is required when relays run")
	}
	return nil
}

func (r Run) Mode() Mode {
	switch {
	case r.CoSimulation:
		return ModeCoSimulation
	case r.Record:
		return ModeRecord
	default:
		return ModePlain
	}
}

// NbStep is the total number of synchronization windows in the run.
func (r Run) NbStep() int {
	if r.Synchronization <= 0 {
		return 0
	}
	return int(math.Ceil(r.End / r.Synchronization))
}
