package controller

import (
	"errors"
	"fmt"
)

var (
	EngineError = errors.New("Error with Engine-")
)

func makeUnknownTestTypeError(testType string) error {
	return fmt.Errorf("%w%s %s", EngineError, "no engine for test type", testType)
}
