package depgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors. Their messages are user-facing reasons.
var (
	ErrSelfDependency      = errors.New("task cannot depend on itself")
	ErrDuplicateDependency = errors.New("dependency already exists")
	ErrCircularDependency  = errors.New("this would create a circular dependency")
	ErrDependencyNotFound  = errors.New("dependency not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrAccessDenied        = errors.New("not a member of this project")
)

// DependencyError reports a rejected mutation together with the pair involved.
type DependencyError struct {
	Kind        error
	TaskID      TaskID
	DependsOnID TaskID
}

func (e *DependencyError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s (task %d depends on %d)", e.Kind.Error(), e.TaskID, e.DependsOnID)
}

func (e *DependencyError) Unwrap() error { return e.Kind }

func rejectf(kind error, taskID, dependsOnID TaskID) error {
	return &DependencyError{Kind: kind, TaskID: taskID, DependsOnID: dependsOnID}
}

// Reason returns the user-facing reason for err: the message of the first
// sentinel it wraps, or the error text itself.
func Reason(err error) string {
	for _, kind := range []error{
		ErrSelfDependency, ErrDuplicateDependency, ErrCircularDependency,
		ErrDependencyNotFound, ErrTaskNotFound, ErrAccessDenied,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return err.Error()
}
