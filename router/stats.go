package router

import (
	"fmt"
	"sync"
	"time"

	"dx7bridge/reframe"
)

// Stats counts what went through a bridge session.
type Stats struct {
	mu         sync.Mutex
	start      time.Time
	chunks     int64
	bytes      int64
	dropped    int64
	messages   map[reframe.Kind]int64
	sendErrors int64
}

type StatsSnapshot struct {
	Uptime        time.Duration
	Chunks        int64
	Bytes         int64
	DroppedChunks int64
	ChannelVoice  int64
	SystemCommon  int64
	RealTime      int64
	SysEx         int64
	SendErrors    int64
}

func NewStats() *Stats {
	return &Stats{
		start:    time.Now(),
		messages: make(map[reframe.Kind]int64),
	}
}

func (s *Stats) AddChunk(size int) {
	s.mu.Lock()
	s.chunks++
	s.bytes += int64(size)
	s.mu.Unlock()
}

func (s *Stats) IncDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (s *Stats) AddMessage(kind reframe.Kind) {
	s.mu.Lock()
	s.messages[kind]++
	s.mu.Unlock()
}

// IncSendError returns the number of failures so far.
func (s *Stats) IncSendError() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErrors++
	return s.sendErrors
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Uptime:        time.Since(s.start),
		Chunks:        s.chunks,
		Bytes:         s.bytes,
		DroppedChunks: s.dropped,
		ChannelVoice:  s.messages[reframe.ChannelVoice],
		SystemCommon:  s.messages[reframe.SystemCommon],
		RealTime:      s.messages[reframe.RealTime],
		SysEx:         s.messages[reframe.SysEx],
		SendErrors:    s.sendErrors,
	}
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("up %s, %d chunks (%d bytes, %d dropped), channel %d, common %d, realtime %d, sysex %d, send errors %d",
		s.Uptime.Truncate(time.Second), s.Chunks, s.Bytes, s.DroppedChunks,
		s.ChannelVoice, s.SystemCommon, s.RealTime, s.SysEx, s.SendErrors)
}
