// Package model holds the data shapes shared across the chapter-extraction
// pipeline: the book's virtual timeline, candidate chapter cues, silence
// spans, and the smart-detect configuration.
package model

import "sort"

// AudioFile is one contiguous file in a book's virtual timeline.
type AudioFile struct {
	Ino      string
	MimeType string
	Duration float64
	Chapters []SimpleChapter
}

// SupportedMimeTypes are the audio MIME types the library server may hand
// back; anything else is ignored when building a Book's file list.
var SupportedMimeTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp4":  true, // M4B
	"audio/flac": true,
	"audio/wav":  true,
	"audio/aac":  true,
	"audio/ogg":  true,
}

// Book is the virtual timeline formed by concatenating Files in order.
type Book struct {
	ID       string
	Duration float64
	Files    []AudioFile
}

// FileStarts returns the cumulative start offset of each file in the
// virtual timeline, i.e. FileStarts()[i] is the global timestamp at which
// Files[i] begins.
func (b *Book) FileStarts() []float64 {
	starts := make([]float64, len(b.Files))
	var acc float64
	for i, f := range b.Files {
		starts[i] = acc
		acc += f.Duration
	}
	return starts
}

// Locate maps a global timeline timestamp to a (file index, local offset)
// pair. Panics-free: timestamps past the end clamp to the last file.
func (b *Book) Locate(globalTimestamp float64) (fileIndex int, localOffset float64) {
	starts := b.FileStarts()
	idx := sort.Search(len(starts), func(i int) bool {
		if i+1 >= len(starts) {
			return true
		}
		return starts[i+1] > globalTimestamp
	})
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.Files) {
		idx = len(b.Files) - 1
	}
	if idx < 0 {
		return 0, 0
	}
	return idx, globalTimestamp - starts[idx]
}

// SimpleChapter is a single (timestamp, title) chapter marker, used for
// both external cue sources and the final emitted chapter list.
type SimpleChapter struct {
	Timestamp float64
	Title     string
}

// CueSourceID names where a CueSource's cues originated.
type CueSourceID string

const (
	CueSourceServer        CueSourceID = "server-supplied"
	CueSourceEmbedded      CueSourceID = "embedded"
	CueSourceAudnexus      CueSourceID = "audnexus"
	CueSourceFileStarts    CueSourceID = "file-starts"
	CueSourceSmartDetect   CueSourceID = "smart-detect"
	CueSourceSmartDetectVad CueSourceID = "smart-detect-vad"
)

// CueSource is a labelled provider of candidate chapter cues.
type CueSource struct {
	ID          CueSourceID
	ShortName   string
	Description string
	Cues        []SimpleChapter
}

// SilenceSpan is a maximal interval of sub-threshold audio energy (or
// VAD-reported non-speech), subject to MinSilenceDuration.
type SilenceSpan struct {
	Start float64
	End   float64
}

// Duration returns End - Start.
func (s SilenceSpan) Duration() float64 { return s.End - s.Start }

// SortSilenceSpans sorts spans ascending by start time, in place.
func SortSilenceSpans(spans []SilenceSpan) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
}

// CueSet maps a candidate cardinality to its sorted cue timestamps.
type CueSet map[int][]float64

// SmartDetectConfig configures the scanner/clusterer/extractor chain.
type SmartDetectConfig struct {
	SegmentLength      float64
	MinClipLength      float64
	ASRBuffer          float64
	MinSilenceDuration float64
}

// DefaultSmartDetectConfig mirrors the original Python service's defaults.
func DefaultSmartDetectConfig() SmartDetectConfig {
	return SmartDetectConfig{
		SegmentLength:      8.0,
		MinClipLength:      1.0,
		ASRBuffer:          0.25,
		MinSilenceDuration: 2.0,
	}
}

// Validate checks range and cross-field constraints, returning every
// violation found (not just the first).
func (c SmartDetectConfig) Validate() []error {
	var errs []error
	if c.SegmentLength < 3.0 || c.SegmentLength > 30.0 {
		errs = append(errs, errRange("segment_length", 3.0, 30.0, c.SegmentLength))
	}
	if c.MinClipLength < 0.5 || c.MinClipLength > 5.0 {
		errs = append(errs, errRange("min_clip_length", 0.5, 5.0, c.MinClipLength))
	}
	if c.ASRBuffer < 0.0 || c.ASRBuffer > 1.0 {
		errs = append(errs, errRange("asr_buffer", 0.0, 1.0, c.ASRBuffer))
	}
	if c.MinSilenceDuration < 1.0 || c.MinSilenceDuration > 5.0 {
		errs = append(errs, errRange("min_silence_duration", 1.0, 5.0, c.MinSilenceDuration))
	}
	if c.SegmentLength < c.MinClipLength {
		errs = append(errs, errConstraint("segment_length must be >= min_clip_length"))
	}
	return errs
}
