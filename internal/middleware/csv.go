package middleware

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type localizationEntry struct {
	Key     string            `json:"key,omitempty"`
	Context string            `json:"context,omitempty"`
	Example string            `json:"example,omitempty"`
	Source  string            `json:"source,omitempty"`
	Values  map[string]string `json:"values"`
}

// snapshotCSV turns a .csv file into a LocalizationTable. The header row
// names the columns: Key, Source, Context and Example are fixed fields and
// every other non-empty header is a locale id.
func snapshotCSV(ictx *snapshot.InstanceContext, fs vfs.VFS, p string) (*snapshot.InstanceSnapshot, error) {
	isFile, err := statFile(fs, p)
	if err != nil || !isFile {
		return nil, err
	}
	name, ok := MatchFileName(p, ".csv")
	if !ok {
		return nil, nil
	}

	data, err := read(fs, p)
	if err != nil {
		return nil, err
	}
	entries, err := parseLocalizationCSV(data)
	if err != nil {
		return nil, decodeError(p, err)
	}
	contents, err := json.Marshal(entries)
	if err != nil {
		return nil, decodeError(p, err)
	}

	snap := snapshot.New(name, "LocalizationTable").
		WithProperty("Contents", snapshot.String(contents)).
		WithMetadata(fileMetadata(ictx, p))
	return &snap, nil
}

func parseLocalizationCSV(data []byte) ([]localizationEntry, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return []localizationEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	entries := []localizationEntry{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		e := localizationEntry{Values: map[string]string{}}
		for i, cell := range record {
			if i >= len(header) {
				break
			}
			switch col := header[i]; col {
			case "Key":
				e.Key = cell
			case "Source":
				e.Source = cell
			case "Context":
				e.Context = cell
			case "Example":
				e.Example = cell
			case "":
			default:
				if cell != "" {
					e.Values[col] = cell
				}
			}
		}
		if e.Key == "" && e.Source == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
