package appcontext

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContext(t *testing.T) {
	logger, hook := test.NewNullLogger()

	ctx := WithEra(WithDbid(WithRequestId(context.Background(), "req-1"), 2), "era1")
	LoggerFromContext(logger, ctx).Info("Recovering segment")

	assert.Equal(t, logrus.Fields{"dbid": 2, "era": "era1", "request_id": "req-1"}, hook.LastEntry().Data)
}

func TestLoggerFromContext_Empty(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LoggerFromContext(logger, context.Background()).Info("Recovering segment")

	assert.Empty(t, hook.LastEntry().Data)
}
