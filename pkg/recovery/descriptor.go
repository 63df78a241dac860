package recovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Descriptor tells how a single mirror segment should be recovered.
type Descriptor struct {
	TargetDatadir  string `json:"target_datadir"`
	TargetPort     int    `json:"target_port"`
	TargetDbid     int    `json:"target_segment_dbid"`
	SourceHostname string `json:"source_hostname"`
	SourcePort     int    `json:"source_port"`
	IsFullRecovery bool   `json:"is_full_recovery"`
	ProgressFile   string `json:"progress_file"`
}

func (d Descriptor) validate() error {
	switch {
	case d.TargetDatadir == "":
		return fmt.Errorf("target datadir is not set for dbid %d", d.TargetDbid)
	case d.TargetPort <= 0:
		return fmt.Errorf("invalid target port %d for dbid %d", d.TargetPort, d.TargetDbid)
	case d.SourceHostname == "":
		return fmt.Errorf("source hostname is not set for dbid %d", d.TargetDbid)
	case d.SourcePort <= 0:
		return fmt.Errorf("invalid source port %d for dbid %d", d.SourcePort, d.TargetDbid)
	case d.ProgressFile == "":
		return fmt.Errorf("progress file is not set for dbid %d", d.TargetDbid)
	}

	return nil
}

func SerializeList(descriptors []Descriptor) (string, error) {
	if descriptors == nil {
		descriptors = []Descriptor{}
	}

	b, err := json.Marshal(descriptors)
	if err != nil {
		return "", errors.Wrap(err, "Unable to serialize recovery descriptors")
	}

	return string(b), nil
}

// DeserializeList decodes a list produced by SerializeList. Target dbids
// must be unique within the list.
func DeserializeList(s string) ([]Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(s))))
	dec.DisallowUnknownFields()

	var descriptors []Descriptor
	if err := dec.Decode(&descriptors); err != nil {
		return nil, errors.Wrap(err, "Unable to deserialize recovery descriptors")
	}

	seen := make(map[int]struct{}, len(descriptors))
	for _, d := range descriptors {
		if _, ok := seen[d.TargetDbid]; ok {
			return nil, fmt.Errorf("duplicate target dbid %d in recovery descriptors", d.TargetDbid)
		}
		seen[d.TargetDbid] = struct{}{}
	}

	if descriptors == nil {
		descriptors = []Descriptor{}
	}

	return descriptors, nil
}
