package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/dagbuild/internal/clients"
)

const (
	pipelineNameMissingMessageConstant  = "pipeline name not provided"
	pipelineTasksMissingMessageConstant = "pipeline defines no tasks"
	taskNameMissingTemplateConstant     = "pipeline task %d has no name"
	taskCommandMissingTemplateConstant  = "pipeline task %q has no command"
	duplicateTaskNameTemplateConstant   = "pipeline task %q defined multiple times"
)

// Configuration mirrors the YAML pipeline definition on disk.
type Configuration struct {
	Name    string               `yaml:"name"`
	Tasks   []TaskConfiguration  `yaml:"tasks"`
	Clients ClientsConfiguration `yaml:"clients"`
}

// TaskConfiguration describes one delegated build task.
type TaskConfiguration struct {
	Name             string   `yaml:"name"`
	Command          string   `yaml:"command"`
	Arguments        []string `yaml:"arguments"`
	WorkingDirectory string   `yaml:"working_directory"`
	DependsOn        []string `yaml:"depends_on"`
	Skip             bool     `yaml:"skip"`
}

// ClientsConfiguration describes the graph-level resource clients.
type ClientsConfiguration struct {
	Postgres    *clients.PostgresConfiguration    `yaml:"postgres"`
	ObjectStore *clients.ObjectStoreConfiguration `yaml:"object_store"`
}

// Validate checks structural pipeline properties. Dependency resolution and
// cycle detection happen when the graph is built.
func (configuration Configuration) Validate() error {
	if len(strings.TrimSpace(configuration.Name)) == 0 {
		return errors.New(pipelineNameMissingMessageConstant)
	}
	if len(configuration.Tasks) == 0 {
		return errors.New(pipelineTasksMissingMessageConstant)
	}

	seenNames := make(map[string]struct{}, len(configuration.Tasks))
	for taskIndex := range configuration.Tasks {
		taskConfiguration := configuration.Tasks[taskIndex]
		taskName := strings.TrimSpace(taskConfiguration.Name)
		if len(taskName) == 0 {
			return fmt.Errorf(taskNameMissingTemplateConstant, taskIndex)
		}
		if _, exists := seenNames[taskName]; exists {
			return fmt.Errorf(duplicateTaskNameTemplateConstant, taskName)
		}
		seenNames[taskName] = struct{}{}
		if len(strings.TrimSpace(taskConfiguration.Command)) == 0 {
			return fmt.Errorf(taskCommandMissingTemplateConstant, taskName)
		}
	}
	return nil
}
