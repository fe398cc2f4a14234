package producers

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/models"
)

// fileTail tails one or more local log files, emitting every existing line
// once and then following appends. Grounded on
// original_source/app/streams/producers/filetail.py's "read to EOF, then
// seek+follow" behavior.
type fileTail struct {
	paths  []string
	broker *broker.Broker
}

func newFileTail(source models.DataSource, b *broker.Broker) (Producer, error) {
	paths := stringSlice(source.Config["paths"])
	if len(paths) == 0 {
		paths = []string{"data/Linux.log", "data/Mac.log"}
	}
	return &fileTail{paths: paths, broker: b}, nil
}

func (f *fileTail) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(f.paths))
	for _, p := range f.paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := f.tail(ctx, path); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}(p)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}
	return nil
}

func (f *fileTail) tail(ctx context.Context, path string) error {
	source := filepath.Base(path)

	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		slog.Info("filetail: waiting for file", "path", path)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		f.emit(ctx, source, line)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return err
		}
		f.emit(ctx, source, line)
	}
}

func (f *fileTail) emit(ctx context.Context, source, line string) {
	trimmed := trimNewline(line)
	if trimmed == "" {
		return
	}
	_ = AppendLog(ctx, f.broker, source, trimmed, "")
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
