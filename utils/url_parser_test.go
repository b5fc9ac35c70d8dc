package utils

import (
	"errors"
	"testing"

	"github.com/nci/gstream/region"
)

func TestParseQuery(t *testing.T) {
	m, err := ParseQuery(`&Streaming:Type=tiled&note=a\&b&box=0:0:10%3A10&empty`)
	if err != nil {
		t.Fatal(err)
	}
	if v := m.Get("streaming:type"); v != "tiled" {
		t.Errorf("expected lower-cased key, got %v", m)
	}
	if v := m.Get("note"); v != "a&b" {
		t.Errorf("expected escaped ampersand kept in value, got %q", v)
	}
	if v := m.Get("box"); v != "0:0:10:10" {
		t.Errorf("expected decoded box, got %q", v)
	}
	if _, ok := m["empty"]; !ok {
		t.Errorf("expected key without value")
	}

	m, _ = ParseQuery("box=1:2:3%ZZ")
	if v := m.Get("box"); v != "1:2:3%ZZ" {
		t.Errorf("malformed escape should be kept, got %q", v)
	}
}

func TestParseExtendedFilename(t *testing.T) {
	ef, err := ParseExtendedFilename("out.raw?&streaming:type=tiled&streaming:sizemode=nbsplits&streaming:sizevalue=8&box=16:32:512:256&gdal:co:compress=deflate")
	if err != nil {
		t.Fatal(err)
	}
	if ef.Path != "out.raw" {
		t.Errorf("unexpected path %q", ef.Path)
	}
	if ef.Streaming.Type != "tiled" || ef.Streaming.SizeMode != "nbsplits" || ef.Streaming.SizeValue != 8 {
		t.Errorf("unexpected streaming options %+v", ef.Streaming)
	}
	if ef.Box == nil || !ef.Box.Equal(region.New2D(16, 32, 512, 256)) {
		t.Errorf("unexpected box %v", ef.Box)
	}
	if ef.Options.Get("gdal:co:compress") != "deflate" {
		t.Errorf("unknown options should be kept, got %v", ef.Options)
	}

	ef, err = ParseExtendedFilename("plain.png")
	if err != nil || ef.Path != "plain.png" || ef.Box != nil {
		t.Errorf("plain filename parsed as %+v, %v", ef, err)
	}

	ef, err = ParseExtendedFilename("out.raw?streaming:sizevalue=2.5")
	if err != nil || ef.Streaming.SizeValue != 2 {
		t.Errorf("fractional size value should truncate, got %+v, %v", ef, err)
	}

	for _, bad := range []string{
		"?&box=0:0:1:1",
		"out.raw?&streaming:sizevalue=many",
		"out.raw?&box=0:0:10",
		"out.raw?&box=0:0:-1:10",
		"out.raw?&box=a:b:c:d",
	} {
		if _, err := ParseExtendedFilename(bad); !errors.Is(err, region.ErrInvalidArgument) {
			t.Errorf("%q: expected invalid argument, got %v", bad, err)
		}
	}
}

func TestParseBox3D(t *testing.T) {
	box, err := ParseBox("1:2:3:10:20:30")
	if err != nil {
		t.Fatal(err)
	}
	exp, _ := region.MakeRegion(region.Index{1, 2, 3}, region.Size{10, 20, 30})
	if !box.Equal(exp) {
		t.Errorf("expected %v, got %v", exp, box)
	}
}
