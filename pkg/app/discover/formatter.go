package discover

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// deletedColor marks names that only survive in directory slack
var deletedColor = color.New(color.FgRed)

// FormatOutput writes discovery results to w in the given output format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats results as a table
func formatTable(out io.Writer, response *Response) error {
	if len(response.Files) == 0 {
		_, err := fmt.Fprintln(out, "No files found matching the search criteria.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	// Header
	fmt.Fprintf(w, "INODE\tPATH\tSIZE\tMODIFIED\tTYPE\n")
	fmt.Fprintf(w, "-----\t----\t----\t--------\t----\n")

	// Sort files by path for consistent output
	files := make([]FileResult, len(response.Files))
	copy(files, response.Files)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	// Data rows
	for _, file := range files {
		modTime := file.Modified.UTC().Format("2006-01-02 15:04")
		path := file.Path
		if file.Deleted {
			path = deletedColor.Sprint(path + " (deleted)")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", file.Inum, path, file.FormatSize(), modTime, file.Type)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Summary
	fmt.Fprintln(out)
	if response.Filesystem.Type != "" {
		fmt.Fprintf(out, "Filesystem: %s", response.Filesystem.Type)
		if response.Filesystem.VolumeName != "" {
			fmt.Fprintf(out, " (%s)", response.Filesystem.VolumeName)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Found %d files", response.TotalFound)
	if response.Truncated {
		fmt.Fprintf(out, " (showing first %d)", len(response.Files))
	}
	_, err := fmt.Fprintf(out, " in %v\n", response.SearchTime)
	return err
}

// formatJSON formats results as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats results as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// FormatSummary provides a brief summary for verbose output
func FormatSummary(response *Response) string {
	if response.TotalFound == 0 {
		return "No files found"
	}

	summary := fmt.Sprintf("Found %d file", response.TotalFound)
	if response.TotalFound != 1 {
		summary += "s"
	}

	if response.Truncated {
		summary += fmt.Sprintf(" (showing %d)", len(response.Files))
	}

	var totalSize int64
	deleted := 0
	for _, file := range response.Files {
		totalSize += file.Size
		if file.Deleted {
			deleted++
		}
	}

	summary += fmt.Sprintf(" totaling %s", units.BytesSize(float64(totalSize)))
	if deleted > 0 {
		summary += fmt.Sprintf(", %d deleted", deleted)
	}
	summary += fmt.Sprintf(" in %v", response.SearchTime)

	return summary
}
