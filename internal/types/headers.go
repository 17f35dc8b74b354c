package types

// StreamingFlag is embedded in every record file header. Absent means streaming.
type StreamingFlag struct {
	ContentStreamingEnabled *bool `json:"contentStreamingEnabled,omitempty"`
}

// Streaming reports whether records follow the header one per line.
func (f StreamingFlag) Streaming() bool {
	return f.ContentStreamingEnabled == nil || *f.ContentStreamingEnabled
}

// SetStreaming records the framing mode. Streaming is the default and is left implicit.
func (f *StreamingFlag) SetStreaming(enabled bool) {
	if enabled {
		f.ContentStreamingEnabled = nil
		return
	}
	disabled := false
	f.ContentStreamingEnabled = &disabled
}

// PreparedHeader heads the prep file.
type PreparedHeader struct {
	Encoding              string  `json:"encoding"`
	GenCodeStartDirective *string `json:"genCodeStartDirective,omitempty"`
	GenCodeEndDirective   *string `json:"genCodeEndDirective,omitempty"`
	StreamingFlag
}

// RequestHeader heads a per-bucket augmenting code file. Each field holds the first
// configured marker of its kind.
type RequestHeader struct {
	GenCodeStartDirective   string `json:"genCodeStartDirective,omitempty"`
	GenCodeEndDirective     string `json:"genCodeEndDirective,omitempty"`
	EmbeddedStringDirective string `json:"embeddedStringDirective,omitempty"`
	EmbeddedJSONDirective   string `json:"embeddedJsonDirective,omitempty"`
	SkipCodeStartDirective  string `json:"skipCodeStartDirective,omitempty"`
	SkipCodeEndDirective    string `json:"skipCodeEndDirective,omitempty"`
	AugCodeDirective        string `json:"augCodeDirective,omitempty"`
	InlineGenCodeDirective  string `json:"inlineGenCodeDirective,omitempty"`
	NestedLevelStartMarker  string `json:"nestedLevelStartMarker,omitempty"`
	NestedLevelEndMarker    string `json:"nestedLevelEndMarker,omitempty"`
	StreamingFlag
}

// ResponseHeader heads a per-bucket generated code file.
type ResponseHeader struct {
	StreamingFlag
}

// SummaryHeader heads a change summary file.
type SummaryHeader struct {
	StreamingFlag
}
