package metrics

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newBusiness(log *zap.SugaredLogger) *Business {
	return NewBusiness(nil, log)
}

var Module = fx.Options(
	fx.Provide(newBusiness),
)
