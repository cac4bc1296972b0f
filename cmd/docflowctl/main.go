// Command docflowctl imports a campaign definition (file, STDIN, or an
// inline string; JSON or YAML) into a tenant's database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/docuflow/enginecore/internal/app"
	"github.com/docuflow/enginecore/internal/config"
	"github.com/docuflow/enginecore/internal/importer"
	"github.com/docuflow/enginecore/internal/logger"
)

func main() {
	tenantSlug := flag.String("tenant", "", "tenant slug to import the campaign into (required)")
	file := flag.String("file", "", "path to a campaign definition file (JSON or YAML)")
	inline := flag.String("inline", "", "campaign definition as an inline string")
	format := flag.String("format", "", "force the input format: json or yaml (default: inferred)")
	validateOnly := flag.Bool("validate-only", false, "parse and validate without persisting")
	flag.Parse()

	if strings.TrimSpace(*tenantSlug) == "" {
		log.Fatal("-tenant is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()
	application, err := app.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}
	defer application.Stop(ctx)

	t, err := application.Catalog().BySlug(ctx, *tenantSlug)
	if err != nil {
		log.Fatalf("resolve tenant %q: %v", *tenantSlug, err)
	}

	im, err := application.Importer(ctx, t)
	if err != nil {
		log.Fatalf("build importer for tenant %q: %v", *tenantSlug, err)
	}

	src := importer.Source{
		Inline:   *inline,
		Stdin:    os.Stdin,
		File:     *file,
		ReadFile: os.ReadFile,
	}
	data, err := src.Resolve()
	if err != nil {
		log.Fatalf("resolve campaign definition: %v", err)
	}

	resolvedFormat := strings.ToLower(strings.TrimSpace(*format))
	if resolvedFormat == "" {
		resolvedFormat = inferFormat(*file)
	}

	camp, err := im.Import(ctx, data, resolvedFormat, *validateOnly)
	if err != nil {
		log.Fatalf("import campaign: %v", err)
	}

	action := "imported"
	if *validateOnly {
		action = "validated"
	}
	out, _ := json.MarshalIndent(map[string]any{
		"action": action,
		"slug":   camp.Slug,
		"name":   camp.Name,
		"state":  camp.State,
	}, "", "  ")
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}

func inferFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
