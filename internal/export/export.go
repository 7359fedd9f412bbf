// Package export renders a chapter list to CSV, JSON, and a CD-audio
// CUE sheet.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Chapter is the minimal view export needs: callers project their
// chapterstore.Chapter down to this before calling an export function.
type Chapter struct {
	Number    int
	Timestamp float64
	Title     string
}

// CSV renders header "Chapter,Timestamp,Timestamp_Seconds,Title" plus one
// row per chapter.
func CSV(chapters []Chapter) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"Chapter", "Timestamp", "Timestamp_Seconds", "Title"}); err != nil {
		return "", err
	}
	for _, c := range chapters {
		row := []string{
			fmt.Sprintf("%d", c.Number),
			formatClockTime(c.Timestamp),
			fmt.Sprintf("%g", c.Timestamp),
			c.Title,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// jsonChapter is one chapter entry in the JSON export document.
type jsonChapter struct {
	Chapter           int     `json:"chapter"`
	Timestamp         float64 `json:"timestamp"`
	TimestampFormatted string `json:"timestamp_formatted"`
	Title             string  `json:"title"`
}

type jsonExport struct {
	ExportTimestamp string        `json:"export_timestamp"`
	TotalChapters   int           `json:"total_chapters"`
	Chapters        []jsonChapter `json:"chapters"`
}

// JSON renders the export_timestamp/total_chapters/chapters document.
// exportTimestamp is injected by the caller (pipeline supervisor owns
// wall-clock time; this package stays deterministic).
func JSON(chapters []Chapter, exportTimestamp string) (string, error) {
	doc := jsonExport{
		ExportTimestamp: exportTimestamp,
		TotalChapters:   len(chapters),
		Chapters:        make([]jsonChapter, len(chapters)),
	}
	for i, c := range chapters {
		doc.Chapters[i] = jsonChapter{
			Chapter:            c.Number,
			Timestamp:          c.Timestamp,
			TimestampFormatted: formatClockTime(c.Timestamp),
			Title:              c.Title,
		}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CUESheet renders a CD-audio .cue file. The FILE header is hard-coded
// to "audiobook.mp3" regardless of the real source file type: external
// tooling expects that literal header.
func CUESheet(chapters []Chapter) string {
	var sb strings.Builder
	sb.WriteString("TITLE \"Audiobook Chapters\"\n")
	sb.WriteString("PERFORMER \"Unknown\"\n")
	sb.WriteString("FILE \"audiobook.mp3\" MP3\n")

	for _, c := range chapters {
		fmt.Fprintf(&sb, "  TRACK %02d AUDIO\n", c.Number)
		fmt.Fprintf(&sb, "    TITLE \"%s\"\n", escapeCueTitle(c.Title))
		fmt.Fprintf(&sb, "    INDEX 01 %s\n", formatCueTime(c.Timestamp))
	}
	return sb.String()
}

func escapeCueTitle(title string) string {
	return strings.ReplaceAll(title, "\"", "'")
}

// formatClockTime renders HH:MM:SS, or MM:SS when under one hour.
func formatClockTime(seconds float64) string {
	total := int(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// formatCueTime renders MM:SS:FF where FF is CD-audio frames,
// FF = floor((t mod 1) * 75).
func formatCueTime(seconds float64) string {
	total := int(seconds)
	m := total / 60
	s := total % 60
	frac := seconds - math.Floor(seconds)
	ff := int(math.Floor(frac * 75))
	return fmt.Sprintf("%02d:%02d:%02d", m, s, ff)
}
