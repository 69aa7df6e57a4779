package ingest

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

// StartReplay tails recorded reading logs, one JSON reading per line. With
// start_at_end false a whole session recording is replayed from the top.
func StartReplay(ctx context.Context, cfg *config.Manager, out chan<- model.Reading, logger *slog.Logger) {
	current := cfg.Get().Ingest.Replay
	if !current.Enabled {
		if logger != nil {
			logger.Info("replay ingest disabled")
		}
		return
	}
	for _, path := range current.Files {
		path := path
		if logger != nil {
			logger.Info("replay ingest enabled", "path", path, "start_at_end", current.StartAtEnd)
		}
		go replayFile(ctx, path, current.StartAtEnd, cfg, out, logger)
	}
}

func replayFile(ctx context.Context, path string, startAtEnd bool, cfg *config.Manager, out chan<- model.Reading, logger *slog.Logger) {
	var file *os.File
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if file == nil {
			f, err := os.Open(path)
			if err != nil {
				if logger != nil {
					logger.Warn("replay open failed", "path", path, "err", err)
				}
				if !BackoffSleep(ctx, 500*time.Millisecond) {
					return
				}
				continue
			}
			file = f
			if startAtEnd {
				if pos, err := file.Seek(0, io.SeekEnd); err == nil {
					offset = pos
				}
			}
		}

		reader := bufio.NewReader(file)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					if !BackoffSleep(ctx, 200*time.Millisecond) {
						_ = file.Close()
						return
					}
					info, statErr := os.Stat(path)
					if statErr == nil && info.Size() < offset {
						_ = file.Close()
						file = nil
						break
					}
					continue
				}
				if logger != nil {
					logger.Warn("replay read error", "path", path, "err", err)
				}
				_ = file.Close()
				file = nil
				break
			}
			offset += int64(len(line))
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			reading, perr := ParseReading([]byte(line), cfg.Get().Ingest.DefaultSessionID)
			if perr != nil {
				if logger != nil {
					logger.Warn("replay reading parse error", "path", path, "err", perr)
				}
				continue
			}
			reading.Source = "replay"
			SendNonBlocking(ctx, out, reading, logger)
		}
	}
}
