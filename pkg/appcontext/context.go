package appcontext

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextId int

const (
	dbidKeyId contextId = iota
	eraKeyId
	requestIdKeyId
)

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKeyId, requestId)
}

func WithDbid(ctx context.Context, dbid int) context.Context {
	return context.WithValue(ctx, dbidKeyId, dbid)
}

func WithEra(ctx context.Context, era string) context.Context {
	return context.WithValue(ctx, eraKeyId, era)
}

func LoggerFromContext(logger logrus.FieldLogger, ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	result := logger

	if ctxDbid, ok := ctx.Value(dbidKeyId).(int); ok {
		result = result.WithField("dbid", ctxDbid)
	}

	if ctxEra, ok := ctx.Value(eraKeyId).(string); ok && ctxEra != "" {
		result = result.WithField("era", ctxEra)
	}

	if ctxRequestId, ok := ctx.Value(requestIdKeyId).(string); ok && ctxRequestId != "" {
		result = result.WithField("request_id", ctxRequestId)
	}

	return result
}
