package schedule

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/drover/pkg/config"
	"github.com/cuemby/drover/pkg/types"
	"gopkg.in/yaml.v3"
)

// Source is a provider of the declared job schedule
type Source interface {
	GetJobsSchedule() ([]*types.ScheduledJob, error)
}

// jobDecl is the YAML shape of a single scheduled job declaration
type jobDecl struct {
	ID          string            `yaml:"id"`
	Lock        string            `yaml:"lock"`
	Type        string            `yaml:"type"`
	Weight      int               `yaml:"weight"`
	Data        map[string]string `yaml:"data"`
	Cron        string            `yaml:"cron"`
	MaxJobAge   config.Duration   `yaml:"maxJobAge"`
	MaxAttempts int               `yaml:"maxAttempts"`
	Priority    int               `yaml:"priority"`
	MinVersion  string            `yaml:"minVersion"`
}

// scheduleFile is the YAML shape of a schedule file
type scheduleFile struct {
	Jobs []jobDecl `yaml:"jobs"`
}

// FileSource reads scheduled job declarations from a YAML file. The
// file is re-read on every GetJobsSchedule call, so edits take effect
// at the next schedule refresh.
type FileSource struct {
	path string
}

// NewFileSource creates a schedule source backed by a YAML file
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// GetJobsSchedule loads, validates, and returns the declared schedule
func (f *FileSource) GetJobsSchedule() ([]*types.ScheduledJob, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	return ParseSchedule(data)
}

// ParseSchedule parses YAML schedule declarations and validates every entry
func ParseSchedule(data []byte) ([]*types.ScheduledJob, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file: %w", err)
	}

	jobs := make([]*types.ScheduledJob, 0, len(file.Jobs))
	locks := make(map[string]bool)
	ids := make(map[string]bool)

	for _, decl := range file.Jobs {
		job, err := decl.toScheduledJob()
		if err != nil {
			return nil, err
		}
		if ids[job.JobID] {
			return nil, fmt.Errorf("duplicate job id %q", job.JobID)
		}
		if locks[job.Lock] {
			return nil, fmt.Errorf("duplicate lock %q", job.Lock)
		}
		ids[job.JobID] = true
		locks[job.Lock] = true
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func (d *jobDecl) toScheduledJob() (*types.ScheduledJob, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if d.Lock == "" {
		return nil, fmt.Errorf("job %s: lock is required", d.ID)
	}
	if d.Weight <= 0 {
		return nil, fmt.Errorf("job %s: weight must be positive, got %d", d.ID, d.Weight)
	}
	if d.MaxAttempts < 1 {
		return nil, fmt.Errorf("job %s: maxAttempts must be at least 1, got %d", d.ID, d.MaxAttempts)
	}
	if d.MaxJobAge <= 0 {
		return nil, fmt.Errorf("job %s: maxJobAge must be positive", d.ID)
	}
	if _, err := Parse(d.Cron); err != nil {
		return nil, fmt.Errorf("job %s: %w", d.ID, err)
	}

	return &types.ScheduledJob{
		JobID:   d.ID,
		Lock:    d.Lock,
		JobType: d.Type,
		Weight:  d.Weight,
		Data:    d.Data,
		Schedule: types.JobSchedule{
			Cron:      d.Cron,
			MaxJobAge: time.Duration(d.MaxJobAge),
		},
		MaxAttempts: d.MaxAttempts,
		Priority:    d.Priority,
		MinVersion:  d.MinVersion,
	}, nil
}
