package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/methodslab/studychat/internal/transcript"
)

const divider = "============================================================"

// FormatRecord renders one transcript record as the reviewers' text layout:
// a metadata header, one block per session and role-labeled message lines.
func FormatRecord(rec transcript.Record) string {
	var b strings.Builder

	b.WriteString(divider + "\n")
	b.WriteString("TRANSCRIPT METADATA\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "User ID: %s\n", rec.UserID)
	fmt.Fprintf(&b, "Sessions: %d\n", len(rec.Sessions))
	b.WriteString("\n")

	for i, sess := range rec.Sessions {
		b.WriteString(divider + "\n")
		fmt.Fprintf(&b, "SESSION %d\n", i+1)
		b.WriteString(divider + "\n\n")
		fmt.Fprintf(&b, "Session ID: %s\n", sess.SessionID)
		fmt.Fprintf(&b, "Date: %s\n", sess.Date.Format(time.RFC3339))
		b.WriteString("\n")

		for _, msg := range sess.Transcript {
			b.WriteString(roleLabel(msg.Role) + ": " + msg.Content + "\n\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func roleLabel(role string) string {
	switch strings.ToLower(role) {
	case transcript.RoleUser:
		return "User"
	case transcript.RoleAssistant:
		return "Assistant"
	default:
		if role == "" {
			return "Unknown"
		}
		return strings.ToUpper(role[:1]) + strings.ToLower(role[1:])
	}
}

// FileName builds a filesystem-safe name for one record's export file.
func FileName(part string, rec transcript.Record) string {
	id := rec.UserID
	if id == "" {
		id = "unknown_id"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	id = replacer.Replace(id)

	name := fmt.Sprintf("%s_sessions_%d_id_%s.txt", part, len(rec.Sessions), id)
	if len(name) > 200 {
		name = fmt.Sprintf("%s_sessions_%d_id_%s.txt", part, len(rec.Sessions), id[:50])
	}
	return name
}

// WriteRecords writes every record of one part under dir/<part>/ and a
// summary file next to them. Returns the written transcript file names.
func WriteRecords(dir, part string, recs []transcript.Record) ([]string, error) {
	partDir := filepath.Join(dir, part)
	if err := os.MkdirAll(partDir, 0o755); err != nil {
		return nil, err
	}

	var files []string
	for _, rec := range recs {
		name := FileName(part, rec)
		path := filepath.Join(partDir, name)
		if err := os.WriteFile(path, []byte(FormatRecord(rec)), 0o644); err != nil {
			return files, fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, name)
	}

	if err := writeSummary(partDir, part, len(recs), files); err != nil {
		return files, err
	}
	return files, nil
}

func writeSummary(partDir, part string, total int, files []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Collection: %s\n", part)
	fmt.Fprintf(&b, "Export Date: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Documents: %d\n", total)
	fmt.Fprintf(&b, "Successfully Exported: %d\n", len(files))
	b.WriteString("\nExported Files:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "  - %s\n", f)
	}

	path := filepath.Join(partDir, part+"_summary.txt")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
