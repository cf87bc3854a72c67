package executor

import (
	"fmt"
	"strings"
)

const (
	failureSectionHeaderTemplateConstant = "--- task %q ---"
	failureSectionSeparatorConstant      = "\n\n"
	buildErrorMessageTemplateConstant    = "DAG build failed, the following tasks crashed (corresponding downstream tasks aborted execution):\n%s"
)

// FailureRecord pairs a task identity with the failure trace captured for it.
type FailureRecord struct {
	TaskName string
	Trace    string
}

// FailureCollector accumulates per-task failure records in occurrence order
// for a single run.
type FailureCollector struct {
	records []FailureRecord
}

// Append adds a record for the named task.
func (collector *FailureCollector) Append(taskName string, trace string) {
	collector.records = append(collector.records, FailureRecord{TaskName: taskName, Trace: trace})
}

// Empty reports whether no failures were captured.
func (collector *FailureCollector) Empty() bool {
	return len(collector.records) == 0
}

// Records returns the captured failures in occurrence order.
func (collector *FailureCollector) Records() []FailureRecord {
	copied := make([]FailureRecord, len(collector.records))
	copy(copied, collector.records)
	return copied
}

// Render produces one block per record, each naming the failing task followed
// by its full trace, concatenated in the order failures occurred.
func (collector *FailureCollector) Render() string {
	sections := make([]string, 0, len(collector.records))
	for _, record := range collector.records {
		header := fmt.Sprintf(failureSectionHeaderTemplateConstant, record.TaskName)
		sections = append(sections, header+"\n"+record.Trace)
	}
	return strings.Join(sections, failureSectionSeparatorConstant)
}

// BuildError is the single failure raised at run end, aggregating every task
// failure captured during the run. A run that raises it returns no reports.
type BuildError struct {
	DAGName string
	Records []FailureRecord
}

// Error renders one section per failing task with its identity and trace.
func (buildError *BuildError) Error() string {
	collector := FailureCollector{records: buildError.Records}
	return fmt.Sprintf(buildErrorMessageTemplateConstant, collector.Render())
}
