package types

// OCRFact is one key/value fact extracted from a scenario image.
type OCRFact struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OCRResult is the extraction output for a section A announcement image.
type OCRResult struct {
	RawText string    `json:"raw_text"`
	Facts   []OCRFact `json:"facts"`
}

// AudioBlob is an encoded capture of the candidate's audio.
type AudioBlob struct {
	Data []byte `json:"-"`
	MIME string `json:"mime"`
}
