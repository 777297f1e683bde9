package scheduler

import (
	"errors"
	"fmt"

	apiv1 "k8s.io/api/core/v1"
)

var (
	PodError = errors.New("Error with pod-")
)

func makePodNotRunningError(name string, phase apiv1.PodPhase) error {
	return fmt.Errorf("%w%s is %s", PodError, name, phase)
}

type NoResourcesFoundErr struct {
	Err     error
	Message string
}

func (e *NoResourcesFoundErr) Error() string {
	return e.Message
}
