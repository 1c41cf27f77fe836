// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/mlehane/sdkdump/pkg/types"
)

const (
	ledgerFileName  = "failed.txt"
	summaryFileName = "dump-info.yaml"
)

// AppendFailures records failed item paths in the output root's ledger.
// The ledger is append-only so it stays additive across retried runs;
// each batch is preceded by a one-line summary.
func AppendFailures(outputRoot string, failures []types.ItemResult) error {
	if len(failures) == 0 {
		return nil
	}

	path := filepath.Join(outputRoot, ledgerFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening failures ledger: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "# %s: %d item(s) failed\n", time.Now().Format(time.RFC3339), len(failures))
	for _, item := range failures {
		fmt.Fprintln(f, item.Item)
	}
	return nil
}

// WriteSummary writes the run metadata record once, after a successful
// run.
func WriteSummary(outputRoot string, sum types.RunSummary) error {
	data, err := yaml.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	return os.WriteFile(filepath.Join(outputRoot, summaryFileName), data, 0o644)
}
