package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InfraSecConsult/zenoh-extcap-go/internal/bus"
	"github.com/InfraSecConsult/zenoh-extcap-go/internal/extcap"
)

type staticSubscriber struct {
	samples map[string][]bus.Sample
}

// Subscribe delivers the prepared samples and ends the subscription.
func (s *staticSubscriber) Subscribe(channel string) (<-chan bus.Sample, error) {
	ch := make(chan bus.Sample, len(s.samples[channel]))
	for _, sample := range s.samples[channel] {
		ch <- sample
	}
	close(ch)
	return ch, nil
}

func execute(t *testing.T, provider *DependencyProvider, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(provider)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExtcapInterfaces(t *testing.T) {
	out, err := execute(t, &DependencyProvider{}, "--extcap-interfaces")
	require.NoError(t, err)
	assert.Contains(t, out, "interface {value=zenoh}{display=Listen on Zenoh P2P channel}")
	assert.Contains(t, out, "extcap {version=")
}

func TestExtcapDLTs(t *testing.T) {
	out, err := execute(t, &DependencyProvider{}, "--extcap-dlts", "--extcap-interface", "zenoh")
	require.NoError(t, err)
	assert.Contains(t, out, "dlt {number=147}{name=USER0}")
}

func TestExtcapDLTsUnknownInterface(t *testing.T) {
	_, err := execute(t, &DependencyProvider{}, "--extcap-dlts", "--extcap-interface", "eth0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, extcap.ErrUnknownInterface))
}

func TestExtcapConfig(t *testing.T) {
	out, err := execute(t, &DependencyProvider{}, "--extcap-config", "--extcap-interface", "zenoh")
	require.NoError(t, err)
	assert.Contains(t, out, "{call=--channels}")
}

func TestCaptureUnknownInterface(t *testing.T) {
	_, err := execute(t, &DependencyProvider{}, "--capture", "--extcap-interface", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, extcap.ErrUnknownInterface)
}

func TestCaptureWritesFifoAndRoundTrips(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	sub := &staticSubscriber{samples: map[string][]bus.Sample{
		"tx": {
			{Channel: "tx", Payload: []byte{0x01, 0x02}, ReceivedAt: base},
			{Channel: "tx", Payload: []byte("zenoh"), ReceivedAt: base.Add(time.Second)},
		},
	}}
	fifo := filepath.Join(t.TempDir(), "capture.pcap")

	provider := &DependencyProvider{Subscriber: sub, Context: context.Background()}
	_, err := execute(t, provider,
		"--capture",
		"--extcap-interface", "zenoh",
		"--fifo", fifo,
		"--channels", "tx",
	)
	require.NoError(t, err)

	f, err := os.Open(fifo)
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, data)
	assert.Equal(t, 2, ci.CaptureLength)
	assert.Equal(t, 2, ci.Length)
	assert.Equal(t, base.UnixMicro(), ci.Timestamp.UnixMicro())

	data, _, err = r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, []byte("zenoh"), data)
}

func TestCaptureRecordsJournal(t *testing.T) {
	sub := &staticSubscriber{samples: map[string][]bus.Sample{
		"tx": {{Channel: "tx", Payload: []byte{1}, ReceivedAt: time.Now()}},
	}}
	dir := t.TempDir()
	provider := &DependencyProvider{Subscriber: sub, Context: context.Background()}

	_, err := execute(t, provider,
		"--capture",
		"--fifo", filepath.Join(dir, "out.pcap"),
		"--channels", "tx",
		"--journal", filepath.Join(dir, "journal.sqlite"),
	)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "journal.sqlite"))
	assert.NoError(t, err)
}

func TestSplitChannels(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitChannels("*"))
	assert.Equal(t, []string{"tx", "rx"}, splitChannels("tx,rx"))
	assert.Equal(t, []string{"a/b", "c"}, splitChannels(" a/b , c ,"))
	assert.Nil(t, splitChannels(""))
}
