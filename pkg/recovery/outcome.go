package recovery

import (
	"encoding/json"
	"fmt"
)

// ErrorType tags the step at which a recovery failed.
type ErrorType string

const (
	// failure before the resync tool was started
	ErrorTypeDefault ErrorType = "default"

	// pg_basebackup failed
	ErrorTypeFull ErrorType = "full"

	// pg_rewind failed
	ErrorTypeIncremental ErrorType = "incremental"

	// postgresql.conf could not be patched
	ErrorTypeUpdate ErrorType = "update"

	// segment could not be started
	ErrorTypeStart ErrorType = "start"
)

var errorTypes = []ErrorType{ErrorTypeDefault, ErrorTypeFull, ErrorTypeIncremental, ErrorTypeUpdate, ErrorTypeStart}

func (t ErrorType) Valid() bool {
	for _, known := range errorTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t *ErrorType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	if !ErrorType(s).Valid() {
		return fmt.Errorf("unknown error type '%s'", s)
	}

	*t = ErrorType(s)

	return nil
}

// Failure is the payload reported for a failed segment recovery.
type Failure struct {
	ErrorType    ErrorType `json:"error_type"`
	ErrorMsg     string    `json:"error_msg"`
	Dbid         int       `json:"dbid"`
	Datadir      string    `json:"datadir"`
	Port         int       `json:"port"`
	ProgressFile string    `json:"progress_file"`
}

func NewFailure(errorType ErrorType, err error, d Descriptor) Failure {
	return Failure{
		ErrorType:    errorType,
		ErrorMsg:     err.Error(),
		Dbid:         d.TargetDbid,
		Datadir:      d.TargetDatadir,
		Port:         d.TargetPort,
		ProgressFile: d.ProgressFile,
	}
}

type Outcome struct {
	ReturnCode int
	Stdout     string
	Stderr     string
}

func (o Outcome) Succeeded() bool {
	return o.ReturnCode == 0
}

// Failure decodes the failure payload of an unsuccessful outcome.
func (o Outcome) Failure() (Failure, error) {
	var f Failure

	if o.Succeeded() {
		return f, fmt.Errorf("outcome is successful")
	}

	err := json.Unmarshal([]byte(o.Stderr), &f)

	return f, err
}

func failedOutcome(f Failure) Outcome {
	b, err := json.Marshal(f)
	if err != nil {
		// Failure holds only strings and ints
		panic(err)
	}

	return Outcome{ReturnCode: 1, Stderr: string(b)}
}
