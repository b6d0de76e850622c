package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/spf13/cobra"

	"github.com/groundwork-io/groundwork/internal/config"
)

var fmtCheck bool

var fmtCmd = &cobra.Command{
	Use:   "fmt [dir]",
	Short: "Rewrite documents to the canonical format",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFmt,
}

func init() {
	fmtCmd.Flags().BoolVar(&fmtCheck, "check", false, "Report unformatted files without rewriting them")
}

func runFmt(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var dirty []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), config.FileExt) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		formatted := hclwrite.Format(src)
		if bytes.Equal(src, formatted) {
			continue
		}
		dirty = append(dirty, entry.Name())

		if !fmtCheck {
			if err := os.WriteFile(path, formatted, 0644); err != nil {
				return err
			}
			fmt.Println(entry.Name())
		}
	}

	if fmtCheck && len(dirty) > 0 {
		return fmt.Errorf("files need formatting: %s", strings.Join(dirty, ", "))
	}
	return nil
}
