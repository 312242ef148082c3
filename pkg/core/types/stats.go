package types

import "sync/atomic"

// DebugStats counts transport activity for troubleshooting. Safe for
// concurrent use; a nil *DebugStats is a no-op everywhere.
type DebugStats struct {
	TransportEvents  atomic.Int64
	ResponsesCreated atomic.Int64
	ResponsesDone    atomic.Int64
	AudioFramesIn    atomic.Int64
	AudioFramesOut   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TransportEvents  int64 `json:"transport_events"`
	ResponsesCreated int64 `json:"responses_created"`
	ResponsesDone    int64 `json:"responses_done"`
	AudioFramesIn    int64 `json:"audio_frames_in"`
	AudioFramesOut   int64 `json:"audio_frames_out"`
}

func (s *DebugStats) Event() {
	if s != nil {
		s.TransportEvents.Add(1)
	}
}

func (s *DebugStats) ResponseCreated() {
	if s != nil {
		s.ResponsesCreated.Add(1)
	}
}

func (s *DebugStats) ResponseDone() {
	if s != nil {
		s.ResponsesDone.Add(1)
	}
}

func (s *DebugStats) FrameIn() {
	if s != nil {
		s.AudioFramesIn.Add(1)
	}
}

func (s *DebugStats) FrameOut() {
	if s != nil {
		s.AudioFramesOut.Add(1)
	}
}

// Snapshot copies the counters.
func (s *DebugStats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		TransportEvents:  s.TransportEvents.Load(),
		ResponsesCreated: s.ResponsesCreated.Load(),
		ResponsesDone:    s.ResponsesDone.Load(),
		AudioFramesIn:    s.AudioFramesIn.Load(),
		AudioFramesOut:   s.AudioFramesOut.Load(),
	}
}
