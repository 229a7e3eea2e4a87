package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/datalib/internal/models"
)

// DataTypesURI is the resource describing the data item format.
const DataTypesURI = "datalib://data-types"

const dataFormatRules = `## Fields

- **title** (required): short human-readable name. Leading and trailing spaces are trimmed.
- **type** (required): one of the types above, lowercase.
- **description**: one or two sentences summarizing the item.
- **content**: the full text. Markdown is allowed.
- **tags**: list of short labels. Blank and duplicate tags are dropped.
- **project_id**: the project the item belongs to. Omit it to use your default project.
- **file_url / file_name / file_size**: set by the ` + "`attach_file`" + ` tool; do not invent them.

## Rules

1. Search before creating: ` + "`list_data`" + ` with a ` + "`search`" + ` term avoids duplicates.
2. Updates are partial. Only the fields you pass change; pass an empty string to clear a text field.
3. Attach files with ` + "`attach_file`" + `. It accepts http(s) URLs and base64 data URIs
   (png, jpg, jpeg, gif, webp, svg, pdf, txt, md) up to 10 MB.
4. Call ` + "`refresh_data`" + ` if the data may have been changed elsewhere.
`

// DataTypesGuide returns the Markdown guide served as the data-types
// resource.
func DataTypesGuide() string {
	var b strings.Builder
	b.WriteString("# Data Item Format\n\n## Types\n\n")
	b.WriteString("| type | name | use for |\n|---|---|---|\n")
	for _, info := range models.DataTypes {
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", info.ID, info.Name, info.Description)
	}
	b.WriteString("\n")
	b.WriteString(dataFormatRules)
	return b.String()
}
