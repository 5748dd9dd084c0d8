package app

import (
	"github.com/fiffu/tickerwatch/lib"
	"github.com/fiffu/tickerwatch/lib/scheduler"
	"github.com/fiffu/tickerwatch/senders"
	"go.uber.org/fx"
)

// Module provides everything the serve command needs besides the logger
// and config.
var Module = fx.Options(
	fx.Provide(NewStore),
	fx.Provide(NewTransport),
	fx.Provide(NewSeenCache),
	fx.Provide(senders.NewSenderRegistry),
	fx.Provide(NewNotifier),
	fx.Provide(NewExtractor),
	fx.Provide(NewPollers),
	fx.Provide(scheduler.NewScheduler),
	fx.Provide(lib.NewService),
	fx.Provide(NewAPI),
)
