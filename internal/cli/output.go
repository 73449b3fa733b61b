package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Print writes v as JSON, or calls text to render it otherwise.
func (f *OutputFormatter) Print(v any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	text(f.Writer)
	return nil
}

// findSheet resolves a sheet by id or case-insensitive name.
func findSheet(sheets []ledger.Sheet, ref string) (ledger.Sheet, error) {
	for _, sh := range sheets {
		if sh.ID == ref {
			return sh, nil
		}
	}

	for _, sh := range sheets {
		if strings.EqualFold(sh.Name, strings.TrimSpace(ref)) {
			return sh, nil
		}
	}

	return ledger.Sheet{}, fmt.Errorf("sheet %q: %w", ref, ledger.ErrNotFound)
}
