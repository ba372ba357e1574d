package logger

import (
	"fmt"
	"io"
	"os"
)

// CloudWatchConfig holds settings for CloudWatch Logs output.
type CloudWatchConfig struct {
	// Group is the CloudWatch log group name.
	Group string
	// Stream is the CloudWatch log stream name.
	Stream string
	// Region is the AWS region for the CloudWatch endpoint.
	Region string
}

// cloudWatchWriter batches entries for CloudWatch Logs. Only the stdout
// fallback is implemented so far.
type cloudWatchWriter struct {
	cfg    CloudWatchConfig
	target io.Writer
}

// NewCloudWatchWriter returns an io.Writer destined for AWS CloudWatch
// Logs. It currently falls back to stdout.
// TODO: ship entries with aws-sdk-go-v2/service/cloudwatchlogs PutLogEvents,
// batching on size and a flush interval.
func NewCloudWatchWriter(cfg CloudWatchConfig) io.Writer {
	fmt.Fprintf(os.Stderr,
		"cloudwatch output configured (group=%s, stream=%s, region=%s) but not yet implemented; falling back to stdout\n",
		cfg.Group, cfg.Stream, cfg.Region)
	return &cloudWatchWriter{cfg: cfg, target: os.Stdout}
}

func (w *cloudWatchWriter) Write(p []byte) (int, error) {
	return w.target.Write(p)
}
