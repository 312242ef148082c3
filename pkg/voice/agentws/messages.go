package agentws

// Control-plane frames for the voice-agent socket. Audio travels as raw
// binary frames alongside these JSON messages.

type settingsMessage struct {
	Type  string        `json:"type"`
	Audio audioSettings `json:"audio"`
	Agent agentSettings `json:"agent"`
}

type audioSettings struct {
	Input  audioFormat `json:"input"`
	Output audioFormat `json:"output"`
}

type audioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container,omitempty"`
}

type agentSettings struct {
	Language string        `json:"language,omitempty"`
	Listen   providerBlock `json:"listen"`
	Think    thinkBlock    `json:"think"`
	Speak    providerBlock `json:"speak"`
	Greeting string        `json:"greeting,omitempty"`
}

type providerBlock struct {
	Provider providerRef `json:"provider"`
}

type thinkBlock struct {
	Provider providerRef `json:"provider"`
	Prompt   string      `json:"prompt,omitempty"`
}

type providerRef struct {
	Type  string `json:"type"`
	Model string `json:"model,omitempty"`
}

type keepAliveMessage struct {
	Type string `json:"type"`
}

type updatePromptMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

type updateSpeakMessage struct {
	Type  string        `json:"type"`
	Speak providerBlock `json:"speak"`
}

type injectUserMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type serverMessage struct {
	Type        string `json:"type"`
	Role        string `json:"role,omitempty"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
}
