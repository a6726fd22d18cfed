package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkflowTable is an optional on-disk override of the action to workflow
// file mapping, for deployments that rename or split their workflows.
type WorkflowTable struct {
	Update    string `yaml:"update"`
	Summarize string `yaml:"summarize"`
}

// LoadWorkflowTable reads a workflow table from the file named by
// RELAY_WORKFLOWS_FILE and applies any non-empty entries onto cfg. A missing
// variable is not an error; a named but unreadable or invalid file is.
func LoadWorkflowTable(cfg *Config) error {
	path := os.Getenv("RELAY_WORKFLOWS_FILE")
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workflow table %s: %w", path, err)
	}

	var table WorkflowTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("failed to parse workflow table %s: %w", path, err)
	}

	if table.Update != "" {
		cfg.GitHub.UpdateWorkflow = table.Update
	}
	if table.Summarize != "" {
		cfg.GitHub.SummarizeWorkflow = table.Summarize
	}
	return nil
}
