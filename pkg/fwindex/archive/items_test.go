package archive

import (
	"testing"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/stretchr/testify/assert"
)

func itemNames(items []Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Name
	}
	return out
}

func TestDirectoryItems(t *testing.T) {
	records := []types.FileRecord{
		{Path: "A/ISP1/f1.xml"},
		{Path: "A/ISP1/deep/x.bin"},
		{Path: "A/ISP10/y.bin"},
		{Path: "B/z.bin"},
	}

	assert.Equal(t, []string{"f1.xml", "deep/x.bin"}, itemNames(DirectoryItems(records, "A/ISP1")))
	assert.Equal(t, []string{"f1.xml", "deep/x.bin"}, itemNames(DirectoryItems(records, "/A/ISP1/")))
	assert.Len(t, DirectoryItems(records, ""), 4)
	assert.Empty(t, DirectoryItems(records, "C"))

	items := DirectoryItems(records, "A")
	assert.Equal(t, "A/ISP1/f1.xml", items[0].Path, "fetch path stays the full catalog path")
}

func TestResolveSelection(t *testing.T) {
	c := &types.Catalog{Files: []types.FileRecord{{Path: "a.bin"}, {Path: "b/c.bin"}}}

	records, missing := ResolveSelection(c, []string{"b/c.bin", "/a.bin", "nope.bin", "a.bin"})
	assert.Len(t, records, 2)
	assert.Equal(t, []string{"nope.bin"}, missing)
}

func TestArchiveNames(t *testing.T) {
	assert.Equal(t, "ISP1.zip", DirectoryArchiveName("A/ISP1"))
	assert.Equal(t, "A.zip", DirectoryArchiveName("A/"))
	assert.Equal(t, "firmware.zip", DirectoryArchiveName(""))

	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	assert.Equal(t, "firmware-selection-20240506-070809.zip", SelectionArchiveName(ts))
}
