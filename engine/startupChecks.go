package engine

import (
	"path/filepath"

	"github.com/drummonds/godjvu/config"
	"github.com/drummonds/godjvu/renderer"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	serverConfig := serverHandler.ServerConfig

	for _, dir := range []string{
		serverConfig.DocumentPath,
		filepath.Join(serverConfig.DocumentPath, "uploads"),
		serverConfig.ExportPath,
	} {
		if err := config.CheckDirectory(dir, true, Logger); err != nil {
			return err
		}
	}

	engineChecks(serverConfig.RenderConfig)
	return nil
}

// engineChecks reports which document formats this build can open
func engineChecks(rc config.RenderConfig) {
	pdf, err := renderer.NewRenderer(renderer.FormatPDF, renderer.Options{Engine: rc.PDFEngine, DPI: rc.RenderDPI})
	if err != nil {
		Logger.Warn("PDF engine unavailable, PDF documents will be rejected", "engine", rc.PDFEngine, "error", err)
	} else {
		pdf.Close()
		Logger.Info("PDF engine available", "engine", rc.PDFEngine, "dpi", rc.RenderDPI)
	}

	djvu, err := renderer.NewRenderer(renderer.FormatDjVu, renderer.Options{})
	if err != nil {
		Logger.Warn("DjVu engine unavailable, build with -tags djvulibre to enable it", "error", err)
	} else {
		djvu.Close()
		Logger.Info("DjVu engine available")
	}
}
