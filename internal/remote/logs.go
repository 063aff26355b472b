package remote

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"go.uber.org/zap"
)

// LogsAPI is the part of the CloudWatch Logs client used here.
type LogsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// LogGroup returns the log group of the function.
func LogGroup(function string) string {
	return "/aws/lambda/" + function
}

// LogEvent is a single line of the function's log.
type LogEvent struct {
	Time    time.Time
	Stream  string
	Message string
}

// LogsParams configures a log read.
type LogsParams struct {
	// Function is the function name.
	Function string

	// Since is the start of the time window.
	Since time.Time

	// Filter is an optional CloudWatch Logs filter pattern.
	Filter string

	// Follow keeps polling for new events until ctx is done.
	Follow bool

	// PollInterval is the delay between polls when following.
	PollInterval time.Duration
}

// Logs reads the function's log group.
type Logs struct {
	client LogsAPI
	log    *zap.Logger
}

func NewLogs(client LogsAPI, log *zap.Logger) *Logs {
	return &Logs{
		client: client,
		log:    log.Named("logs"),
	}
}

// Read calls fn for every event of the function's log group in the window,
// oldest first. When following, it polls until ctx is done.
func (l *Logs) Read(ctx context.Context, params LogsParams, fn func(LogEvent) error) error {
	group := LogGroup(params.Function)
	start := params.Since
	seen := make(map[string]struct{})

	for {
		last, err := l.readWindow(ctx, group, start, params.Filter, seen, fn)
		if err != nil {
			return err
		}

		if !params.Follow {
			return nil
		}

		if last.After(start) {
			start = last
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(params.PollInterval):
		}
	}
}

func (l *Logs) readWindow(
	ctx context.Context,
	group string,
	start time.Time,
	filter string,
	seen map[string]struct{},
	fn func(LogEvent) error,
) (time.Time, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(group),
		StartTime:    aws.Int64(start.UnixMilli()),
	}
	if filter != "" {
		input.FilterPattern = aws.String(filter)
	}

	last := start

	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(l.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return last, fmt.Errorf("error reading log group %s: %w", group, err)
		}

		for _, e := range page.Events {
			id := aws.ToString(e.EventId)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			event := LogEvent{
				Time:    time.UnixMilli(aws.ToInt64(e.Timestamp)),
				Stream:  aws.ToString(e.LogStreamName),
				Message: aws.ToString(e.Message),
			}
			if event.Time.After(last) {
				last = event.Time
			}

			if err := fn(event); err != nil {
				return last, err
			}
		}
	}

	return last, nil
}

// Printer returns a callback writing events to w, one per line.
func Printer(w io.Writer) func(LogEvent) error {
	return func(e LogEvent) error {
		if _, err := fmt.Fprintf(w, "%s %s %s", e.Time.UTC().Format(time.RFC3339Nano), e.Stream, e.Message); err != nil {
			return err
		}
		if strings.HasSuffix(e.Message, "\n") {
			return nil
		}
		_, err := fmt.Fprintln(w)
		return err
	}
}
