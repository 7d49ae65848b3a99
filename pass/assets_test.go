package pass

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func assetDir(t *testing.T) string {
	dir := t.TempDir()
	for i := 0; i < RankingLayers; i++ {
		writePNG(t, filepath.Join(dir, RankingFile(i)), RankingSize, RankingSize)
	}
	writePNG(t, filepath.Join(dir, SobolFile), 256, 256)
	writePNG(t, filepath.Join(dir, BRDFFile), 32, 32)
	return dir
}

func TestRankingFile(t *testing.T) {
	if got := RankingFile(0); got != "scrambling_ranking_128x128_2d_1spp.png" {
		t.Errorf("RankingFile(0) = %s", got)
	}
	if got := RankingFile(8); got != "scrambling_ranking_128x128_2d_256spp.png" {
		t.Errorf("RankingFile(8) = %s", got)
	}
	if n := len(AssetFiles()); n != 11 {
		t.Errorf("%d asset files, want 11", n)
	}
}

func TestValidateSamplingAssets(t *testing.T) {
	dir := assetDir(t)
	if err := ValidateSamplingAssets(dir); err != nil {
		t.Fatal(err)
	}

	writePNG(t, filepath.Join(dir, RankingFile(3)), 64, 128)
	if err := ValidateSamplingAssets(dir); !errors.Is(err, ErrAssetSize) {
		t.Fatalf("got %v, want ErrAssetSize", err)
	}
}

func TestValidateSamplingAssetsMissing(t *testing.T) {
	dir := assetDir(t)
	if err := os.Remove(filepath.Join(dir, BRDFFile)); err != nil {
		t.Fatal(err)
	}
	if err := ValidateSamplingAssets(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v, want ErrNotExist", err)
	}
}

func TestRankingLayers(t *testing.T) {
	data, err := rankingLayers(assetDir(t))
	if err != nil {
		t.Fatal(err)
	}
	if want := RankingSize * RankingSize * 4 * RankingLayers; len(data) != want {
		t.Errorf("%d bytes, want %d", len(data), want)
	}
}
