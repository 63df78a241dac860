package handler

import (
	"bufio"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/segrecovery/pkg/appcontext"
	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

// CommandSource lists the recovery commands of the current run.
type CommandSource interface {
	Commands() (string, []recovery.Command)
}

type RecoveryStatusHandler struct {
	logger logrus.FieldLogger
	source CommandSource
}

func NewRecoveryStatusHandler(logger logrus.FieldLogger, source CommandSource) *RecoveryStatusHandler {
	return &RecoveryStatusHandler{
		logger: logger,
		source: source,
	}
}

type recoveryStatusResponse struct {
	Era      string `json:"era"`
	Dbid     int    `json:"dbid"`
	Datadir  string `json:"datadir"`
	Port     int    `json:"port"`
	Tool     string `json:"tool"`
	State    string `json:"state"`
	Progress string `json:"progress"`
}

func (h *RecoveryStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := appcontext.LoggerFromContext(h.logger, r.Context())

	era, cmds := h.source.Commands()

	result := make([]recoveryStatusResponse, 0, len(cmds))

	for _, cmd := range cmds {
		d := cmd.Descriptor()

		result = append(result, recoveryStatusResponse{
			Era:      era,
			Dbid:     d.TargetDbid,
			Datadir:  d.TargetDatadir,
			Port:     d.TargetPort,
			Tool:     cmd.Tool(),
			State:    cmd.State().String(),
			Progress: lastLine(d.ProgressFile),
		})
	}

	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(result)
	if err != nil {
		logger.WithError(err).Error("Unable to encode response")
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// lastLine returns the last non-empty line of a progress file. Resync tools
// rewrite their progress line with carriage returns, so those split lines too.
func lastLine(file string) string {
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()

	var last string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		for _, part := range strings.Split(scanner.Text(), "\r") {
			if part = strings.TrimSpace(part); part != "" {
				last = part
			}
		}
	}

	return last
}
