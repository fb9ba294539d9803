package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/methodslab/studychat/internal/transcript"
)

func sampleRecord() transcript.Record {
	return transcript.Record{
		UserID: "ABC123",
		Sessions: []transcript.SessionEntry{
			{
				SessionID: "sess-1",
				Date:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				Transcript: []transcript.Message{
					{Role: transcript.RoleAssistant, Content: "Hello. Let's discuss the research context."},
					{Role: transcript.RoleUser, Content: "Hello"},
					{Role: transcript.RoleAssistant, Content: "Hi there"},
				},
			},
			{
				SessionID:  "sess-2",
				Date:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
				Transcript: []transcript.Message{{Role: transcript.RoleUser, Content: "back again"}},
			},
		},
	}
}

func TestFormatRecord(t *testing.T) {
	out := FormatRecord(sampleRecord())

	for _, want := range []string{
		"TRANSCRIPT METADATA",
		"User ID: ABC123",
		"SESSION 1",
		"SESSION 2",
		"Session ID: sess-1",
		"Session ID: sess-2",
		"User: Hello\n",
		"Assistant: Hi there\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("formatted record missing %q:\n%s", want, out)
		}
	}

	// Sessions appear in stored order.
	if strings.Index(out, "sess-1") > strings.Index(out, "sess-2") {
		t.Fatalf("sessions out of order")
	}
}

func TestFileName_Sanitizes(t *testing.T) {
	rec := transcript.Record{UserID: "a/b\\c:d", Sessions: make([]transcript.SessionEntry, 2)}
	name := FileName("part1", rec)
	if name != "part1_sessions_2_id_a_b_c_d.txt" {
		t.Fatalf("unexpected file name %q", name)
	}
}

func TestWriteRecords(t *testing.T) {
	dir := t.TempDir()

	files, err := WriteRecords(dir, "part1", []transcript.Record{sampleRecord()})
	if err != nil {
		t.Fatalf("write records: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "part1", files[0]))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(raw), "User ID: ABC123") {
		t.Fatalf("export file missing metadata")
	}

	summary, err := os.ReadFile(filepath.Join(dir, "part1", "part1_summary.txt"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(summary), "Total Documents: 1") {
		t.Fatalf("summary missing document count:\n%s", summary)
	}
}
