// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "tempo/internal/log"
	"tempo/internal/tempo"
)

// StateSource supplies the latest detection snapshot.
type StateSource interface {
	GetState() tempo.DetectionState
}

// Publisher periodically reads the current detection state, packs it into
// a fixed binary format, and ships it through a Sender. It runs in its own
// goroutine between Start and Stop.
type Publisher struct {
	sender   *Sender
	source   StateSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum  uint32
	packetBuffer *bytes.Buffer // Reused across packets.
}

// NewPublisher creates a Publisher. An interval <= 0 defaults to 100ms.
func NewPublisher(interval time.Duration, sender *Sender, source StateSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("udp publisher: state source cannot be nil")
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("UDP Publisher: Invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is
// a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDP Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDP Publisher: Started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it. Safe to call more
// than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDP Publisher: Stopped.")
	return nil
}

/*
Packet layout (BigEndian):

| Field        | Type    | Bytes |
|--------------|---------|-------|
| Sequence     | uint32  | 4     |
| Timestamp    | uint64  | 8     | Stream position in ms
| BPM          | float32 | 4     |
| Confidence   | float32 | 4     |
| Signal level | float32 | 4     |
| Status       | uint8   | 1     |
*/

func packState(buf *bytes.Buffer, seq uint32, state tempo.DetectionState) error {
	buf.Reset()
	for _, v := range []any{
		seq,
		state.TimestampMs,
		float32(state.BPM),
		float32(state.Confidence),
		float32(state.SignalLevel),
		uint8(state.Status),
	} {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) buildAndSendPacket() {
	p.sequenceNum++
	state := p.source.GetState()

	if err := packState(p.packetBuffer, p.sequenceNum, state); err != nil {
		applog.Errorf("UDP Publisher: Error packing state: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDP Publisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close implements io.Closer by stopping the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
