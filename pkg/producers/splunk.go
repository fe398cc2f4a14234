package producers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/models"
)

// splunkProducer streams a Splunk search export as newline-delimited JSON
// and re-emits each result's _raw field as a log line. Grounded on
// original_source/app/streams/producers/splunk.py.
type splunkProducer struct {
	reqURL string
	token  string
	client *http.Client
	broker *broker.Broker
}

func newSplunk(source models.DataSource, b *broker.Broker) (Producer, error) {
	cfg := source.Config
	base := strings.TrimSuffix(stringOr(cfg["base_url"], ""), "/")
	q := url.Values{}
	q.Set("search", "search "+stringOr(cfg["search"], ""))
	q.Set("output_mode", "json")
	if earliest := stringOr(cfg["earliest"], ""); earliest != "" {
		q.Set("earliest_time", earliest)
	}
	if latest := stringOr(cfg["latest"], ""); latest != "" {
		q.Set("latest_time", latest)
	}

	reqURL := ""
	if base != "" {
		reqURL = base + "/services/search/jobs/export?" + q.Encode()
	}

	return &splunkProducer{
		reqURL: reqURL,
		token:  stringOr(cfg["token"], ""),
		client: &http.Client{Timeout: 0},
		broker: b,
	}, nil
}

func (s *splunkProducer) Run(ctx context.Context) error {
	if s.reqURL == "" || s.token == "" {
		slog.Info("splunk: missing base_url/token; not starting")
		<-ctx.Done()
		return ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Splunk "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("splunk export returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		var obj struct {
			Result struct {
				Raw string `json:"_raw"`
			} `json:"result"`
		}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			slog.Info("splunk: stream parse failed", "error", err)
			continue
		}
		if obj.Result.Raw == "" {
			continue
		}
		_ = AppendLog(ctx, s.broker, "splunk:unknown", strings.TrimSpace(obj.Result.Raw), "")
	}
	return scanner.Err()
}
