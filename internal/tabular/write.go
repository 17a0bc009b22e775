package tabular

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
)

// WriteCSV writes df to path, replacing any existing file and creating
// parent directories. With bom set the file starts with a UTF-8 byte order
// mark so spreadsheet tools detect the encoding.
func WriteCSV(path string, df dataframe.DataFrame, bom bool) (err error) {
	if df.Err != nil {
		return fmt.Errorf("write %s: %w", path, df.Err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if bom {
		if _, err := f.WriteString(utf8BOM); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// FormatFloat renders v with the fewest digits that round-trip, so written
// tables do not pick up a fixed six-decimal tail.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
