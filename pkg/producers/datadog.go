package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/models"
)

// datadogProducer polls the Datadog Logs Search API on an interval and
// re-emits each matched log's "message" field, advancing a "since" cursor
// each round. Grounded on
// original_source/app/streams/producers/datadog.py.
type datadogProducer struct {
	site         string
	apiKey       string
	appKey       string
	query        string
	minutesBack  int
	pollInterval time.Duration
	osHint       string
	since        time.Time
	client       *http.Client
	broker       *broker.Broker
}

func newDatadog(source models.DataSource, b *broker.Broker) (Producer, error) {
	cfg := source.Config
	return &datadogProducer{
		site:         stringOr(cfg["site"], "datadoghq.com"),
		apiKey:       stringOr(cfg["api_key"], ""),
		appKey:       stringOr(cfg["app_key"], ""),
		query:        stringOr(cfg["query"], "*"),
		minutesBack:  int(floatOr(cfg["minutes_back"], 5)),
		pollInterval: time.Duration(floatOr(cfg["poll_interval_sec"], 15)) * time.Second,
		osHint:       strings.ToLower(stringOr(cfg["os"], "unknown")),
		client:       &http.Client{Timeout: 30 * time.Second},
		broker:       b,
	}, nil
}

func (d *datadogProducer) Run(ctx context.Context) error {
	if d.apiKey == "" || d.appKey == "" {
		slog.Info("datadog: missing api_key/app_key; not starting")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		count, err := d.pollOnce(ctx)
		if err != nil {
			slog.Info("datadog: poll failed", "error", err)
		} else {
			slog.Info("datadog: fetched logs", "count", count)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.pollInterval):
		}
	}
}

type datadogResponse struct {
	Data []struct {
		Attributes struct {
			Message string `json:"message"`
		} `json:"attributes"`
	} `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

func (d *datadogProducer) pollOnce(ctx context.Context) (int, error) {
	now := time.Now()
	from := d.since
	if from.IsZero() {
		from = now.Add(-time.Duration(d.minutesBack) * time.Minute)
	}

	apiURL := fmt.Sprintf("https://api.%s/api/v2/logs/events/search", d.site)
	q := url.Values{}
	q.Set("filter[query]", d.query)
	q.Set("filter[from]", from.Format(time.RFC3339))
	q.Set("page[limit]", "100")

	total := 0
	nextURL := apiURL + "?" + q.Encode()
	for nextURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, nextURL, nil)
		if err != nil {
			return total, err
		}
		req.Header.Set("DD-API-KEY", d.apiKey)
		req.Header.Set("DD-APPLICATION-KEY", d.appKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return total, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return total, err
		}
		if resp.StatusCode >= 300 {
			return total, fmt.Errorf("datadog search returned %d", resp.StatusCode)
		}

		var parsed datadogResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return total, err
		}
		for _, item := range parsed.Data {
			msg := strings.TrimSpace(item.Attributes.Message)
			if msg == "" {
				continue
			}
			source := "datadog:" + d.osHint
			if err := AppendLog(ctx, d.broker, source, msg, ""); err != nil {
				continue
			}
			total++
		}
		nextURL = parsed.Links.Next
	}

	d.since = now
	return total, nil
}
