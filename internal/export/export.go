// Package export writes scraped ads to JSON, CSV, or XLSX files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/adscout/internal/model"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath infers the format from a file extension. Unknown
// extensions default to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatJSON
	}
}

// Ads writes ads to path in the given format.
func Ads(path string, format Format, ads []model.Ad) error {
	var err error
	switch format {
	case FormatJSON:
		err = writeJSON(path, ads)
	case FormatCSV:
		err = writeCSV(path, ads)
	case FormatXLSX:
		err = writeXLSX(path, ads)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
	if err != nil {
		return err
	}

	zap.L().Info("ads exported",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("count", len(ads)))
	return nil
}

func writeJSON(path string, ads []model.Ad) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ads); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

var columns = []string{
	"ad_id", "advertiser", "ad_type", "body", "paid_for_by", "ctas",
	"logo_url", "image_urls", "video_urls", "poster_urls",
	"detail_url", "scraped_at",
}

func adRow(ad model.Ad) []string {
	ctas := make([]string, 0, len(ad.Creative.CTAs))
	for _, c := range ad.Creative.CTAs {
		if c.Link != "" {
			ctas = append(ctas, c.Text+" -> "+c.Link)
		} else {
			ctas = append(ctas, c.Text)
		}
	}

	return []string{
		ad.ID,
		ad.Creative.Advertiser,
		ad.Creative.AdType,
		ad.Creative.Body,
		ad.Creative.PaidForBy,
		strings.Join(ctas, "; "),
		ad.Creative.LogoURL,
		strings.Join(ad.Creative.ImageURLs, "; "),
		strings.Join(ad.Creative.VideoURLs, "; "),
		strings.Join(ad.Creative.PosterURLs, "; "),
		ad.DetailURL,
		ad.ScrapedAt.UTC().Format(time.RFC3339),
	}
}

func writeCSV(path string, ads []model.Ad) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, ad := range ads {
		if err := w.Write(adRow(ad)); err != nil {
			return eris.Wrapf(err, "export: write csv row for ad %s", ad.ID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

func writeXLSX(path string, ads []model.Ad) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Ads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	for _, ad := range ads {
		row := sheet.AddRow()
		// Everything goes in as text; ad IDs are numeric-looking and
		// spreadsheets mangle them as numbers.
		for _, v := range adRow(ad) {
			row.AddCell().SetString(v)
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}
