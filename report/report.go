// Package report gathers rendered layers into a PDF with one captioned page
// per image.
package report

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
)

const DefaultPath = "German_NDVI_Report.pdf"

const (
	pageMargin    = 10.0
	captionHeight = 12.0
	captionSize   = 16.0
)

var ErrNoPages = errors.New("report has no pages")

type Page struct {
	Year    int
	Caption string
	Image   string
}

// Caption is e.g. "Germany September 2018 NDVI".
func Caption(region string, month time.Month, year int) string {
	return fmt.Sprintf("%s %s %d NDVI", region, month, year)
}

// YearPages lists one page per year in ascending year order. image gives
// the PNG rendered for a year.
func YearPages(region string, month time.Month, years []int, image func(year int) string) []Page {
	sorted := slices.Clone(years)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	pages := make([]Page, 0, len(sorted))
	for _, year := range sorted {
		pages = append(pages, Page{
			Year:    year,
			Caption: Caption(region, month, year),
			Image:   image(year),
		})
	}
	return pages
}

type options struct {
	compress bool
	title    string
}

type Option func(*options)

// WithTitle sets the document title shown by PDF viewers.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// WithoutCompression leaves page content streams readable.
func WithoutCompression() Option {
	return func(o *options) { o.compress = false }
}

// Write lays the pages out on A4 in the given order, the caption on top and
// the image scaled to the rest of the page. A missing image fails the whole
// report.
func Write(path string, pages []Page, opts ...Option) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	o := options{compress: true}
	for _, opt := range opts {
		opt(&o)
	}
	for _, p := range pages {
		if _, err := os.Stat(p.Image); err != nil {
			return fmt.Errorf("page %q: %w", p.Caption, err)
		}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(o.compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	if o.title != "" {
		pdf.SetTitle(o.title, true)
	}
	pageW, pageH := pdf.GetPageSize()
	left, top, right, bottom := pdf.GetMargins()
	boxW := pageW - left - right
	boxH := pageH - top - bottom - captionHeight

	imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
	for _, p := range pages {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", captionSize)
		pdf.CellFormat(boxW, captionHeight, p.Caption, "", 1, "C", false, 0, "")

		info := pdf.RegisterImageOptions(p.Image, imgOpts)
		if info == nil {
			break
		}
		w, h := fit(info.Width(), info.Height(), boxW, boxH)
		x := left + (boxW-w)/2
		y := top + captionHeight
		pdf.ImageOptions(p.Image, x, y, w, h, false, imgOpts, 0, "")
		logrus.Debugf("Added %s to the report as %q", p.Image, p.Caption)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build report %s: %w", path, err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	logrus.Infof("Wrote report of %d pages to %s", pdf.PageCount(), path)
	return nil
}

// fit scales w x h to the largest size inside boxW x boxH keeping the
// aspect ratio.
func fit(w, h, boxW, boxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return boxW, boxH
	}
	scale := min(boxW/w, boxH/h)
	return w * scale, h * scale
}
