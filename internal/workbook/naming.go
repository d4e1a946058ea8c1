package workbook

import (
	"path/filepath"
	"strings"
	"time"
)

// OutputSuffix marks files produced by a reconciliation run.
const OutputSuffix = "_CatchERR"

// OutputName returns the output base path for input: the input's name with
// its extension removed, followed by _CatchERR and the date as YYYYMMDD,
// placed next to the input.
func OutputName(input string, date time.Time) string {
	clean := filepath.Clean(input)
	base := filepath.Base(clean)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(filepath.Dir(clean), base+OutputSuffix+date.Format("20060102"))
}
