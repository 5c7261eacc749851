package logger

import (
	"go.uber.org/zap"
)

var Log *zap.Logger

func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithOwner 给 logger 附加 owner_id 字段
func WithOwner(logger *zap.Logger, ownerID string) *zap.Logger {
	if ownerID == "" {
		return logger
	}
	return logger.With(zap.String("owner_id", ownerID))
}
