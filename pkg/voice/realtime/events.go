package realtime

// Wire frames for the realtime event channel. Only the fields the
// session consumes are modeled; everything else is ignored.

type event struct {
	Type       string      `json:"type"`
	Delta      string      `json:"delta,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	Item       *eventItem  `json:"item,omitempty"`
	Error      *eventError `json:"error,omitempty"`
}

type eventItem struct {
	Content []eventContent `json:"content,omitempty"`
}

type eventContent struct {
	Transcript string `json:"transcript,omitempty"`
}

type eventError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Instructions            string             `json:"instructions,omitempty"`
	Voice                   string             `json:"voice,omitempty"`
	Modalities              []string           `json:"modalities,omitempty"`
	InputAudioTranscription *transcriptionConf `json:"input_audio_transcription,omitempty"`
}

type transcriptionConf struct {
	Model string `json:"model"`
}

type responseCreate struct {
	Type     string         `json:"type"`
	Response responseConfig `json:"response"`
}

type responseConfig struct {
	Modalities      []string `json:"modalities,omitempty"`
	Instructions    string   `json:"instructions,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}
