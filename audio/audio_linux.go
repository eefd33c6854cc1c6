//go:build linux

package audio

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"interview/errors"
)

// Pulse sources tend to be quiet at 100% volume.
const pulseDefaultGain = 8

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("interview"))
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "connecting to pulseaudio"),
			"is a PulseAudio or PipeWire server running?")
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, errors.Wrap(err, "listing pulse sources")
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

// NewCapture checks that the source exists; the record stream itself is
// created on each Start.
func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	var source *pulse.Source
	var err error
	if device != nil {
		source, err = p.client.SourceByID(device.ID)
	} else {
		source, err = p.client.DefaultSource()
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening pulse source")
	}
	if config.Gain == 0 {
		config.Gain = pulseDefaultGain
	}
	return &pulseCapture{client: p.client, source: source, device: device, config: config}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseStream struct {
	stop chan struct{}
	done chan struct{}
}

type pulseCapture struct {
	client   *pulse.Client
	source   *pulse.Source
	device   *DeviceInfo
	config   CaptureConfig
	callback atomic.Pointer[DataCallback]

	mu      sync.Mutex
	running *pulseStream
}

func (c *pulseCapture) deliver(buf []int16) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	cb := c.callback.Load()
	if cb == nil {
		return len(buf), nil
	}
	pcm := make([]byte, len(buf)*2)
	for i, s := range buf {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	applyGain(pcm, c.config.Gain)
	(*cb)(pcm, uint32(len(buf)))
	return len(buf), nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running != nil {
		return nil
	}

	stream, err := c.client.NewRecord(pulse.Int16Writer(c.deliver),
		pulse.RecordMono,
		pulse.RecordSampleRate(int(c.config.SampleRate)),
		pulse.RecordLatency(0.05),
		pulse.RecordSource(c.source),
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			r.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm) * 3}
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "recording from %s", c.DeviceName())
	}

	run := &pulseStream{stop: make(chan struct{}), done: make(chan struct{})}
	c.running = run
	go func() {
		defer close(run.done)
		stream.Start()
		<-run.stop
		stream.Stop()
		stream.Close()
	}()
	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	run := c.running
	c.running = nil
	c.mu.Unlock()
	if run == nil {
		return
	}
	close(run.stop)
	<-run.done
}

func (c *pulseCapture) Close() { c.Stop() }

func (c *pulseCapture) SetCallback(cb DataCallback) { c.callback.Store(&cb) }

func (c *pulseCapture) ClearCallback() { c.callback.Store(nil) }

func (c *pulseCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}
