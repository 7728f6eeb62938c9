package format

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/playwright-community/playwright-go"
)

// PDF renders the HTML document to a PDF file at pdfPath using headless
// Chromium. Image requests are answered from the cached image bytes; any
// other network request is aborted.
func (f *Formatter) PDF(ctx context.Context, pdfPath string) error {
	doc, err := f.HTML()
	if err != nil {
		return err
	}

	// Install playwright if needed
	if err := playwright.Install(); err != nil {
		return fmt.Errorf("could not install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch()
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	if err := page.Route("**/*", f.serveCachedImage); err != nil {
		return fmt.Errorf("could not intercept requests: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := page.SetContent(string(doc)); err != nil {
		return fmt.Errorf("could not load HTML document: %w", err)
	}

	// B5 paper size: 176mm x 250mm
	data, err := page.PDF(playwright.PagePdfOptions{
		Width:           playwright.String("176mm"),
		Height:          playwright.String("250mm"),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String("15mm"),
			Right:  playwright.String("15mm"),
			Bottom: playwright.String("15mm"),
			Left:   playwright.String("15mm"),
		},
	})
	if err != nil {
		return fmt.Errorf("could not generate PDF: %w", err)
	}

	if err := os.WriteFile(pdfPath, data, 0644); err != nil {
		return fmt.Errorf("could not write PDF to '%s': %w", pdfPath, err)
	}
	return nil
}

func (f *Formatter) serveCachedImage(route playwright.Route) {
	reader, err := f.CachedImage(route.Request().URL())
	if err != nil {
		_ = route.Abort()
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		_ = route.Abort()
		return
	}
	_ = route.Fulfill(playwright.RouteFulfillOptions{
		Status:      playwright.Int(http.StatusOK),
		ContentType: playwright.String(http.DetectContentType(body)),
		Body:        body,
	})
}
