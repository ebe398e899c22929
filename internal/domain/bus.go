package domain

import "context"

// ReportBus carries ingested message reports to downstream consumers.
// Delivery is best-effort: a full or closed bus drops the report.
type ReportBus interface {
	Publish(msg BotMessage)
	Subscribe() <-chan BotMessage
	Close()
}

// ReportSink is where a platform adapter hands inbound platform events.
type ReportSink func(BotMessage)

// Adapter bridges one chat platform inside a frontend process: it reports
// platform events through the sink and executes commands pushed by the
// backend.
type Adapter interface {
	Name() string
	Platform() Platform
	Start(ctx context.Context, sink ReportSink) error
	Execute(ctx context.Context, cmd BotCommand) error
}
