package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paveg/rapids/internal/remote"
	"github.com/tidwall/gjson"
)

// Job states reported by the cluster.
const (
	jobCreated   = "CREATED"
	jobRunning   = "RUNNING"
	jobDone      = "DONE"
	jobFailed    = "FAILED"
	jobCancelled = "CANCELLED"
)

// ErrJobFailed is returned when a background job ends in any state but DONE.
var ErrJobFailed = errors.New("job did not complete")

// CreateFrame implements remote.FrameCreator. It starts the job and polls
// it until completion, returning the destination key.
func (c *Client) CreateFrame(ctx context.Context, opts remote.CreateFrameOptions) (string, error) {
	data, err := c.doJSON(ctx, http.MethodPost, createPath, nil, createFrameForm(opts))
	if err != nil {
		return "", err
	}
	body := gjson.ParseBytes(data)
	jobKey := body.Get("key.name").String()
	if jobKey == "" {
		jobKey = body.Get("job.key.name").String()
	}
	if jobKey == "" {
		return "", fmt.Errorf("CreateFrame response carries no job key")
	}

	dest, err := c.pollJob(ctx, jobKey)
	if err != nil {
		return "", err
	}
	if dest == "" {
		dest = opts.Dest
	}
	return dest, nil
}

func createFrameForm(o remote.CreateFrameOptions) url.Values {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return url.Values{
		"dest":                 {o.Dest},
		"rows":                 {strconv.FormatInt(o.Rows, 10)},
		"cols":                 {strconv.Itoa(o.Cols)},
		"randomize":            {strconv.FormatBool(o.Randomize)},
		"value":                {strconv.FormatInt(o.Value, 10)},
		"real_range":           {f(o.RealRange)},
		"categorical_fraction": {f(o.CategoricalFraction)},
		"factors":              {strconv.Itoa(o.Factors)},
		"integer_fraction":     {f(o.IntegerFraction)},
		"integer_range":        {strconv.FormatInt(o.IntegerRange, 10)},
		"binary_fraction":      {f(o.BinaryFraction)},
		"binary_ones_fraction": {f(o.BinaryOnesFraction)},
		"missing_fraction":     {f(o.MissingFraction)},
		"response_factors":     {strconv.Itoa(o.ResponseFactors)},
		"has_response":         {strconv.FormatBool(o.HasResponse)},
		"seed":                 {strconv.FormatInt(o.Seed, 10)},
	}
}

// pollJob waits for a job to leave the CREATED and RUNNING states and
// returns its destination key.
func (c *Client) pollJob(ctx context.Context, jobKey string) (string, error) {
	if c.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.jobTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		data, err := c.doJSON(ctx, http.MethodGet, jobsPath+url.PathEscape(jobKey), nil, nil)
		if err != nil {
			return "", fmt.Errorf("polling job %s: %w", jobKey, err)
		}
		job := gjson.GetBytes(data, "jobs.0")
		status := job.Get("status").String()
		c.logger.Debug("job status",
			slog.String("job", jobKey),
			slog.String("status", status),
			slog.Float64("progress", job.Get("progress").Float()))

		switch status {
		case jobDone:
			return job.Get("dest.name").String(), nil
		case jobFailed, jobCancelled:
			return "", fmt.Errorf("%w: %s %s: %s", ErrJobFailed, jobKey, status, job.Get("exception").String())
		case jobCreated, jobRunning:
		default:
			return "", fmt.Errorf("%w: %s has unknown status %q", ErrJobFailed, jobKey, status)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for job %s: %w", jobKey, ctx.Err())
		case <-ticker.C:
		}
	}
}
