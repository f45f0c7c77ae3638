package discover

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFileResult_GetSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		expected SizeClass
	}{
		{"tiny file", 512, SizeClassTiny},
		{"small file", 512 * 1024, SizeClassSmall},
		{"medium file", 50 * 1024 * 1024, SizeClassMedium},
		{"large file", 500 * 1024 * 1024, SizeClassLarge},
		{"huge file", 2 * 1024 * 1024 * 1024, SizeClassHuge},
		{"edge case - 1KiB", 1024, SizeClassSmall},
		{"edge case - 1MiB", 1024 * 1024, SizeClassMedium},
		{"edge case - 100MiB", 100 * 1024 * 1024, SizeClassLarge},
		{"edge case - 1GiB", 1024 * 1024 * 1024, SizeClassHuge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := FileResult{Size: tt.size}
			assert.Equal(t, tt.expected, file.GetSizeClass())
		})
	}
}

func TestFileResult_FormatSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		expected string
	}{
		{"zero bytes", 0, "0B"},
		{"bytes", 512, "512B"},
		{"kibibytes", 1536, "1.5KiB"},
		{"mebibytes", int64(2.5 * 1024 * 1024), "2.5MiB"},
		{"exact kibibyte", 1024, "1KiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := FileResult{Size: tt.size}
			assert.Equal(t, tt.expected, file.FormatSize())
		})
	}
}

func TestResponse_Serialization(t *testing.T) {
	resp := Response{
		Files: []FileResult{{
			Path:     "/etc/passwd",
			Name:     "passwd",
			Size:     1200,
			Modified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Type:     "file",
			Inum:     131,
			Deleted:  true,
		}},
		TotalFound: 1,
		Filesystem: FilesystemInfo{Image: "disk.img", Type: "UFS2", VolumeName: "root", BlockSize: 2048},
		SearchQuery: SearchQuery{
			NamePattern:    "pass*",
			IncludeDeleted: true,
			MaxResults:     10,
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	files := decoded["files"].([]interface{})
	first := files[0].(map[string]interface{})
	assert.Equal(t, "/etc/passwd", first["path"])
	assert.Equal(t, float64(131), first["inum"])
	assert.Equal(t, true, first["deleted"])
	assert.Equal(t, "UFS2", decoded["filesystem"].(map[string]interface{})["type"])

	query := decoded["search_query"].(map[string]interface{})
	assert.Equal(t, "pass*", query["name_pattern"])
	assert.NotContains(t, query, "name_regex", "empty criteria are omitted")

	out, err := yaml.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), "volume_name: root")
	assert.Contains(t, string(out), "inum: 131")
}
