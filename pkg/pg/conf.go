package pg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const ConfFile = "postgresql.conf"

const (
	OptTypeNumber = "number"
	OptTypeString = "string"
)

// ModifyConfSetting rewrites key in a postgresql.conf-style file. Active
// assignments of key are commented out and the new one is appended, so the
// previous value stays visible to an operator.
func (t *Tools) ModifyConfSetting(ctx context.Context, description, file, key string, value interface{}, optType string) error {
	t.logger.WithField("file", file).Debug(description)

	formatted, err := formatConfValue(value, optType)
	if err != nil {
		return errors.Wrapf(err, "Unable to set '%s' in %s", key, file)
	}

	info, err := os.Stat(file)
	if err != nil {
		return errors.Wrapf(err, "Unable to stat %s", file)
	}

	content, err := ioutil.ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, "Unable to read %s", file)
	}

	rewritten, err := replaceConfSetting(content, key, formatted)
	if err != nil {
		return errors.Wrapf(err, "Unable to rewrite %s", file)
	}

	tmp, err := ioutil.TempFile(filepath.Dir(file), "."+filepath.Base(file)+".")
	if err != nil {
		return errors.Wrapf(err, "Unable to create temp file for %s", file)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(rewritten); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "Unable to write %s", tmp.Name())
	}

	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "Unable to write %s", tmp.Name())
	}

	if err = os.Chmod(tmp.Name(), info.Mode()); err != nil {
		return errors.Wrapf(err, "Unable to chmod %s", tmp.Name())
	}

	return errors.Wrapf(os.Rename(tmp.Name(), file), "Unable to replace %s", file)
}

func formatConfValue(value interface{}, optType string) (string, error) {
	s := fmt.Sprint(value)

	switch optType {
	case OptTypeNumber:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", fmt.Errorf("value '%s' is not a number", s)
		}
		return s, nil
	case OptTypeString:
		return "'" + strings.Replace(s, "'", "''", -1) + "'", nil
	default:
		return "", fmt.Errorf("unknown option type '%s'", optType)
	}
}

func replaceConfSetting(content []byte, key, value string) ([]byte, error) {
	active := regexp.MustCompile(`^\s*` + regexp.QuoteMeta(key) + `\s*(=|\s)`)

	var out bytes.Buffer

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if active.MatchString(line) {
			line = "#" + line
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	fmt.Fprintf(&out, "%s=%s\n", key, value)

	return out.Bytes(), nil
}
