package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/invoke"
	"github.com/vietddude/skillgate/internal/taxonomy"
	"github.com/vietddude/skillgate/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate documents against the trend and content schemas",
}

var validateTrendCmd = &cobra.Command{
	Use:   "trend <file>",
	Short: "Validate a trend or a JSON array of trends",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runValidate(args[0], validateTrends)
	},
}

var validateContentCmd = &cobra.Command{
	Use:   "content <file>",
	Short: "Validate a content package",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runValidate(args[0], validateContent)
	},
}

func init() {
	validateCmd.AddCommand(validateTrendCmd, validateContentCmd)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(path string, check func([]byte) (validation.Result, error)) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	ok, err := report(os.Stdout, data, check)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// report writes "valid" or the violation envelope to w and reports whether
// the document passed.
func report(w io.Writer, data []byte, check func([]byte) (validation.Result, error)) (bool, error) {
	r, err := check(data)
	if err != nil {
		return false, err
	}
	if r.Valid {
		_, err := fmt.Fprintln(w, "valid")
		return true, err
	}

	envelope, err := invoke.ViolationRecord(taxonomy.ValSchemaInvalid, r).MarshalEnvelope()
	if err != nil {
		return false, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, envelope, "", "  "); err != nil {
		return false, err
	}
	_, err = fmt.Fprintln(w, out.String())
	return false, err
}

func validateTrends(data []byte) (validation.Result, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var trends []domain.TrendData
		if err := json.Unmarshal(data, &trends); err != nil {
			return validation.Result{}, fmt.Errorf("failed to decode trends: %w", err)
		}
		return validation.Default.TrendDataList(trends), nil
	}
	var trend domain.TrendData
	if err := json.Unmarshal(data, &trend); err != nil {
		return validation.Result{}, fmt.Errorf("failed to decode trend: %w", err)
	}
	return validation.Default.TrendData(trend), nil
}

func validateContent(data []byte) (validation.Result, error) {
	var pkg domain.ContentPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return validation.Result{}, fmt.Errorf("failed to decode content package: %w", err)
	}
	return validation.Default.ContentPackage(pkg), nil
}
