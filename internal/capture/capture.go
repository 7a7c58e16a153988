// Package capture bridges bus subscriptions into the pcap sink. One goroutine
// per channel forwards samples into a single fan-in channel; one writer loop
// appends records in arrival order. There is no reordering buffer and no
// filtering: every received sample becomes exactly one record.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/InfraSecConsult/zenoh-extcap-go/internal/bus"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/journal"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/pcap"
)

// FrameWriter is the sink side of the adapter; satisfied by *pcap.Writer.
type FrameWriter interface {
	WriteFrame(pcap.Frame) error
}

// Recorder persists a finished session summary; satisfied by *journal.Journal.
type Recorder interface {
	Record(journal.SessionSummary) error
}

// Adapter runs one capture session.
type Adapter struct {
	Subscriber bus.Subscriber
	Writer     FrameWriter
	Log        zerolog.Logger

	// SessionID and Interface label the journal entry.
	SessionID string
	Interface string
	// Journal is optional; nil disables session recording.
	Journal Recorder
}

type channelStats struct {
	frames    int64
	bytes     int64
	firstSeen time.Time
	lastSeen  time.Time
}

// Run subscribes to every channel and copies samples to the sink until ctx is
// cancelled, all subscriptions end, or a sink write fails. Subscription
// failures abort before any record is written.
func (a *Adapter) Run(ctx context.Context, channels []string) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: no channels given", bus.ErrSubscribe)
	}

	started := time.Now()
	stats := make(map[string]*channelStats, len(channels))

	type subscription struct {
		channel string
		samples <-chan bus.Sample
	}
	subs := make([]subscription, 0, len(channels))
	for _, ch := range channels {
		samples, err := a.Subscriber.Subscribe(ch)
		if err != nil {
			return fmt.Errorf("subscribe %q: %w", ch, err)
		}
		subs = append(subs, subscription{channel: ch, samples: samples})
		stats[ch] = &channelStats{}
		a.Log.Info().Str("channel", ch).Msg("subscribed")
	}

	fanIn := make(chan bus.Sample, 64)
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub subscription) {
			defer wg.Done()
			for sample := range sub.samples {
				select {
				case fanIn <- sample:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	go func() {
		wg.Wait()
		close(fanIn)
	}()

	var total int64
	defer func() {
		a.record(started, total, stats)
	}()

	for {
		select {
		case <-ctx.Done():
			a.Log.Info().Int64("frames", total).Msg("capture stopped")
			return nil
		case sample, ok := <-fanIn:
			if !ok {
				a.Log.Info().Int64("frames", total).Msg("all subscriptions ended")
				return nil
			}
			err := a.Writer.WriteFrame(pcap.Frame{
				Channel:   sample.Channel,
				Payload:   sample.Payload,
				Timestamp: sample.ReceivedAt,
			})
			if err != nil {
				a.Log.Error().Err(err).Msg("sink write failed, stopping capture")
				return err
			}
			total++
			if cs := a.statsFor(stats, sample.Channel, channels); cs != nil {
				cs.frames++
				cs.bytes += int64(len(sample.Payload))
				if cs.firstSeen.IsZero() {
					cs.firstSeen = sample.ReceivedAt
				}
				cs.lastSeen = sample.ReceivedAt
			}
		}
	}
}

// statsFor resolves the stats bucket for a sample. Samples from a wildcard
// subscription carry the concrete channel name, so they are attributed to the
// matching pattern.
func (a *Adapter) statsFor(stats map[string]*channelStats, channel string, patterns []string) *channelStats {
	if cs, ok := stats[channel]; ok {
		return cs
	}
	for _, p := range patterns {
		if bus.MatchChannel(p, channel) {
			return stats[p]
		}
	}
	return nil
}

func (a *Adapter) record(started time.Time, total int64, stats map[string]*channelStats) {
	if a.Journal == nil {
		return
	}
	summary := journal.SessionSummary{
		ID:         a.SessionID,
		Interface:  a.Interface,
		StartedAt:  started,
		StoppedAt:  time.Now(),
		FrameCount: total,
	}
	for ch, cs := range stats {
		summary.Channels = append(summary.Channels, journal.ChannelStats{
			Channel:   ch,
			Frames:    cs.frames,
			Bytes:     cs.bytes,
			FirstSeen: cs.firstSeen,
			LastSeen:  cs.lastSeen,
		})
	}
	if err := a.Journal.Record(summary); err != nil {
		a.Log.Warn().Err(err).Msg("failed to record capture session")
	}
}
