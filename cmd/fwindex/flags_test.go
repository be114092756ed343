package main

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/archive"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/spf13/viper"
)

func TestBuildFilters(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("filter.type", " Configuration ")
	viper.Set("filter.device", "TG-789")
	viper.Set("filter.extension", ".XML")

	got := buildFilters()
	want := query.Filters{Type: "Configuration", Device: "TG-789", Extension: "xml"}
	if got != want {
		t.Errorf("buildFilters() = %+v, want %+v", got, want)
	}
}

func TestBuildSort(t *testing.T) {
	tests := []struct {
		name    string
		sort    string
		reverse bool
		want    query.Sort
		wantErr bool
	}{
		{name: "default", want: query.Sort{Key: query.SortByName}},
		{name: "size reversed", sort: "size", reverse: true, want: query.Sort{Key: query.SortBySize, Desc: true}},
		{name: "mtime alias", sort: "mtime", want: query.Sort{Key: query.SortByModified}},
		{name: "unknown key", sort: "color", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			viper.Set("sort", tt.sort)
			viper.Set("reverse", tt.reverse)

			got, err := buildSort()
			if tt.wantErr {
				if !errors.Is(err, query.ErrInvalidSortKey) {
					t.Errorf("buildSort() error = %v, want ErrInvalidSortKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildSort() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("buildSort() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildSearchOptions(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	if got := buildSearchOptions(); got != query.DefaultSearchOptions() {
		t.Errorf("unset options = %+v, want defaults", got)
	}

	viper.Set("search.limit", 7)
	viper.Set("search.threshold", 0.0)
	got := buildSearchOptions()
	if got.Limit != 7 || got.Threshold != 0 {
		t.Errorf("buildSearchOptions() = %+v", got)
	}
}

func TestGetFormatter(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	if _, err := getFormatter(); err != nil {
		t.Errorf("default formatter: %v", err)
	}
	viper.Set("output_format", "xml")
	if _, err := getFormatter(); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a.bin", []string{"a.bin"}},
		{"A/ISP 1/f1.xml, A/ISP2/f2.bin,,", []string{"A/ISP 1/f1.xml", "A/ISP2/f2.bin"}},
	}
	for _, tt := range tests {
		got := parseCommaSeparated(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommaSeparated(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIndexOutput(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		flag    string
		want    string
	}{
		{"default under root", "", "", filepath.Join("/srv/fw", config.DefaultCatalogName)},
		{"catalog setting", "/var/lib/fw/catalog.json", "", "/var/lib/fw/catalog.json"},
		{"remote catalog ignored", "https://mirror/catalog.json", "", filepath.Join("/srv/fw", config.DefaultCatalogName)},
		{"flag wins", "/var/lib/fw/catalog.json", "out.json", "out.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := indexOutput(&config.Config{Catalog: tt.catalog}, "/srv/fw", tt.flag)
			if got != tt.want {
				t.Errorf("indexOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArchiveDestination(t *testing.T) {
	tests := []struct {
		out, name, want string
	}{
		{"", "ISP1.zip", "ISP1.zip"},
		{"/tmp", "ISP1.zip", "/tmp/ISP1.zip"},
		{"/tmp/custom.zip", "ISP1.zip", "/tmp/custom.zip"},
	}
	for _, tt := range tests {
		if got := archiveDestination(tt.out, tt.name); got != tt.want {
			t.Errorf("archiveDestination(%q, %q) = %q, want %q", tt.out, tt.name, got, tt.want)
		}
	}
}

func TestOriginSource(t *testing.T) {
	tests := []struct {
		origin, want string
	}{
		{"", "local"},
		{"/mnt/firmware", "local"},
		{"https://mirror.example.com", "http"},
		{"http://mirror", "http"},
		{"s3://bucket/prefix", "s3"},
	}
	for _, tt := range tests {
		if got := originSource(tt.origin); got != tt.want {
			t.Errorf("originSource(%q) = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func planCatalog() *query.Engine {
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	files := []types.FileRecord{
		{Path: "A/ISP1/f1.xml", Name: "f1.xml", Device: "A", ISP: "ISP1", Extension: "xml", Type: "Configuration", Size: 10, ModifiedAt: mtime},
		{Path: "A/ISP1/f2.bin", Name: "f2.bin", Device: "A", ISP: "ISP1", Extension: "bin", Type: "Binary", Size: 20, ModifiedAt: mtime},
		{Path: "B/ISP9/g.bin", Name: "g.bin", Device: "B", ISP: "ISP9", Extension: "bin", Type: "Binary", Size: 5, ModifiedAt: mtime},
	}
	return query.NewEngine(&types.Catalog{Version: 1, TotalFiles: len(files), TotalSize: 35, Files: files})
}

func TestPlanArchive(t *testing.T) {
	engine := planCatalog()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	t.Run("directory with filters", func(t *testing.T) {
		plan, err := planArchive(engine, []string{"A/ISP1"}, nil, query.Filters{Extension: "xml"}, now)
		if err != nil {
			t.Fatalf("planArchive() error = %v", err)
		}
		if plan.Name != "ISP1.zip" {
			t.Errorf("Name = %q", plan.Name)
		}
		if len(plan.Items) != 1 || plan.Items[0].Name != "f1.xml" {
			t.Errorf("Items = %+v", plan.Items)
		}
	})

	t.Run("selection keeps full paths", func(t *testing.T) {
		plan, err := planArchive(engine, nil, []string{"B/ISP9/g.bin", "nope.bin"}, query.Filters{}, now)
		if err != nil {
			t.Fatalf("planArchive() error = %v", err)
		}
		if plan.Name != archive.SelectionArchiveName(now) {
			t.Errorf("Name = %q", plan.Name)
		}
		if len(plan.Items) != 1 || plan.Items[0].Name != "B/ISP9/g.bin" {
			t.Errorf("Items = %+v", plan.Items)
		}
		if !reflect.DeepEqual(plan.Missing, []string{"nope.bin"}) {
			t.Errorf("Missing = %v", plan.Missing)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := planArchive(engine, []string{"C"}, nil, query.Filters{}, now); err == nil {
			t.Error("expected an error for an empty directory")
		}
		if _, err := planArchive(engine, nil, []string{"nope.bin"}, query.Filters{}, now); err == nil {
			t.Error("expected an error when nothing selected exists")
		}
		if _, err := planArchive(engine, []string{"A"}, []string{"A/ISP1/f1.xml"}, query.Filters{}, now); err == nil {
			t.Error("expected an error for a path and a selection")
		}
	})
}
