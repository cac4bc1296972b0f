package importer_test

import (
	"context"
	"strings"
	"testing"

	"github.com/docuflow/enginecore/internal/importer"
	"github.com/docuflow/enginecore/internal/registry"
	"github.com/docuflow/enginecore/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct{ slug string }

func (s stubProcessor) ID() string                { return s.slug }
func (s stubProcessor) Describe() registry.Descriptor { return registry.Descriptor{Name: s.slug} }
func (s stubProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	return &registry.Success{}, nil
}

func newImporter(t *testing.T) *importer.Importer {
	reg := registry.New()
	reg.Register(stubProcessor{slug: "ocr-basic"})
	st := memory.New().Stores()
	return &importer.Importer{Campaigns: st.Campaigns, Registry: reg}
}

const validYAML = `
name: Invoice Intake
type: template
state: draft
processors:
  - id: extract
    type: ocr-basic
`

func TestImport_ValidDefinition(t *testing.T) {
	im := newImporter(t)
	c, err := im.Import(context.Background(), []byte(validYAML), "yaml", false)
	require.NoError(t, err)
	require.Equal(t, "invoice-intake", c.Slug)
	require.Len(t, c.PipelineConfig.Processors, 1)
}

func TestImport_ValidateOnlyDoesNotPersist(t *testing.T) {
	reg := registry.New()
	reg.Register(stubProcessor{slug: "ocr-basic"})
	st := memory.New().Stores()
	im := &importer.Importer{Campaigns: st.Campaigns, Registry: reg}

	_, err := im.Import(context.Background(), []byte(validYAML), "yaml", true)
	require.NoError(t, err)

	_, err = st.Campaigns.GetBySlug(context.Background(), "invoice-intake")
	require.Error(t, err)
}

func TestImport_UnknownProcessorType(t *testing.T) {
	im := newImporter(t)
	def := `
name: Bad
type: template
state: draft
processors:
  - id: step1
    type: does-not-exist
`
	_, err := im.Import(context.Background(), []byte(def), "yaml", false)
	require.Error(t, err)
}

func TestImport_DuplicateStepIDs(t *testing.T) {
	im := newImporter(t)
	def := `
name: Bad
type: template
state: draft
processors:
  - id: step1
    type: ocr-basic
  - id: step1
    type: ocr-basic
`
	_, err := im.Import(context.Background(), []byte(def), "yaml", false)
	require.Error(t, err)
}

func TestSource_InlineBeatsStdinBeatsFile(t *testing.T) {
	readFile := func(string) ([]byte, error) { return []byte("file-data"), nil }

	src := importer.Source{Inline: "inline-data", Stdin: strings.NewReader("stdin-data"), File: "def.yaml", ReadFile: readFile}
	data, err := src.Resolve()
	require.NoError(t, err)
	require.Equal(t, "inline-data", string(data))

	src = importer.Source{Stdin: strings.NewReader("stdin-data"), File: "def.yaml", ReadFile: readFile}
	data, err = src.Resolve()
	require.NoError(t, err)
	require.Equal(t, "stdin-data", string(data))

	src = importer.Source{File: "def.yaml", ReadFile: readFile}
	data, err = src.Resolve()
	require.NoError(t, err)
	require.Equal(t, "file-data", string(data))
}
