package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MeKo-Tech/artex/internal/testutil"
	"github.com/MeKo-Tech/artex/internal/utils"
)

// Synthetic pages are A4 at 100 dpi.
const (
	pageW = 827
	pageH = 1169
)

// fixture records what a synthetic catalog contains.
type fixture struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	PDF         string           `json:"pdf"`
	Collection  string           `json:"collection"`
	Pages       int              `json:"pages"`
	Artworks    []fixtureArtwork `json:"artworks"`
}

type fixtureArtwork struct {
	Page   int    `json:"page"`
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		genImages   = flag.Bool("images", true, "Generate synthetic page images")
		genCatalogs = flag.Bool("catalogs", true, "Generate synthetic catalog PDFs and fixtures")
		verbose     = flag.Bool("v", false, "Verbose output")
		help        = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic catalogs for artex testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                 # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -catalogs=false # Generate only page images\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	slog.Info("Starting test data generation...")

	if *verbose {
		slog.Info("Options", "images", *genImages, "catalogs", *genCatalogs)
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}

	if *genImages {
		if err := generatePageImages("testdata/images/pages"); err != nil {
			slog.Error("Failed to generate page images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated synthetic page images")
	}

	if *genCatalogs {
		if err := generateCatalogs("testdata/catalogs"); err != nil {
			slog.Error("Failed to generate catalogs", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated synthetic catalogs")
	}

	slog.Info("Test data generation completed successfully!")
}

// generatePageImages writes single pages covering the layouts the detectors
// must handle.
func generatePageImages(dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	pages := map[string]testutil.Page{
		"single_artwork": {W: pageW, H: pageH, Artworks: []testutil.Artwork{
			{Box: image.Rect(120, 150, 700, 850), Number: "12"},
		}},
		"two_artworks": {W: pageW, H: pageH, Artworks: []testutil.Artwork{
			{Box: image.Rect(100, 100, 700, 480), Number: "3"},
			{Box: image.Rect(100, 620, 700, 1000), Number: "4"},
		}},
		"grid": {W: pageW, H: pageH, Artworks: gridArtworks(1)},
		"blank_frame": {W: pageW, H: pageH, Artworks: []testutil.Artwork{
			{Box: image.Rect(150, 200, 650, 800), Number: "7", Blank: true},
		}},
		"captioned": {W: pageW, H: pageH, Artworks: []testutil.Artwork{
			{Box: image.Rect(120, 120, 700, 800), Number: "5", Caption: []string{"Paysage aux nuages", "Huile sur toile, 1952"}},
		}},
	}
	for name, p := range pages {
		path := filepath.Join(dir, name+".png")
		if err := utils.SavePNG(path, testutil.DrawPage(p)); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
	}
	return nil
}

// gridArtworks lays out four numbered artworks starting at first.
func gridArtworks(first int) []testutil.Artwork {
	var out []testutil.Artwork
	n := first
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			x := 60 + col*390
			y := 80 + row*540
			out = append(out, testutil.Artwork{Box: image.Rect(x, y, x+320, y+400), Number: strconv.Itoa(n)})
			n++
		}
	}
	return out
}

// generateCatalogs writes a plates-table catalog and a caption catalog with
// a fixture describing each.
func generateCatalogs(dir string) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	titles := []string{"LA FLUTE DE PAN", "NATURE MORTE", "LE MODELE", "TETE DE FEMME", "LE PEINTRE"}
	plates := fixture{
		Name:        "plates_catalog",
		Description: "Numbered plates with a plates table on the last page",
		PDF:         "plates_catalog.pdf",
		Collection:  "picasso-like",
	}
	var images []image.Image
	for i, title := range titles {
		n := i + 1
		images = append(images, testutil.DrawPage(testutil.Page{W: pageW, H: pageH, Artworks: []testutil.Artwork{
			{Box: image.Rect(120, 150, 700, 850), Number: strconv.Itoa(n)},
		}}))
		plates.Artworks = append(plates.Artworks, fixtureArtwork{Page: n, Number: n, Title: title})
	}
	table := testutil.Page{W: pageW, H: pageH, Lines: []testutil.Line{{X: 80, Y: 100, Text: "TABLE DES PLANCHES"}}}
	for i, title := range titles {
		table.Lines = append(table.Lines, testutil.Line{X: 80, Y: 140 + i*20, Text: fmt.Sprintf("%d %s. Huile sur toile. ........ %d", i+1, title, i+1)})
	}
	images = append(images, testutil.DrawPage(table))
	plates.Pages = len(images)
	if err := writeCatalog(dir, plates, images); err != nil {
		return err
	}

	captions := fixture{
		Name:        "caption_catalog",
		Description: "Grid pages with numbers and captions under every artwork",
		PDF:         "caption_catalog.pdf",
		Collection:  "dubuffet-like",
	}
	images = nil
	for page := 1; page <= 2; page++ {
		first := (page-1)*4 + 1
		artworks := gridArtworks(first)
		for i := range artworks {
			artworks[i].Caption = []string{fmt.Sprintf("Paysage %d", first+i)}
			captions.Artworks = append(captions.Artworks, fixtureArtwork{Page: page, Number: first + i, Title: fmt.Sprintf("Paysage %d", first+i)})
		}
		images = append(images, testutil.DrawPage(testutil.Page{W: pageW, H: pageH, Artworks: artworks}))
	}
	captions.Pages = len(images)
	return writeCatalog(dir, captions, images)
}

func writeCatalog(dir string, f fixture, pages []image.Image) error {
	if err := testutil.BuildPDF(filepath.Join(dir, f.PDF), pages); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, f.Name+".json"), data, 0o600)
}
