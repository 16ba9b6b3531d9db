package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/skillgate/internal/taxonomy"
)

var showAliases bool

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy [code]",
	Short: "List the error catalog or show one code",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaxonomy,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <status>",
	Short: "Show the catalog code for a raw status",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	taxonomyCmd.Flags().BoolVar(&showAliases, "aliases", false, "include skill-level codes")
	taxonomyCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(taxonomyCmd)
}

func runTaxonomy(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		code := taxonomy.Code(strings.ToUpper(args[0]))
		entry, ok := taxonomy.Lookup(code)
		if !ok {
			return fmt.Errorf("unknown code %q", args[0])
		}
		return printEntries([]taxonomy.Entry{entry})
	}

	entries := taxonomy.All()
	if showAliases {
		entries = append(entries, taxonomy.Aliases()...)
	}
	return printEntries(entries)
}

func runClassify(cmd *cobra.Command, args []string) error {
	status, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid status %q: %w", args[0], err)
	}
	category, code := taxonomy.ClassifyCategory(status)
	fmt.Printf("%d\t%s\t%s\n", status, code, category)
	return nil
}

func printEntries(entries []taxonomy.Entry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CODE\tCATEGORY\tSTATUS\tRETRY\tMAX\tSTRATEGY\tMESSAGE")
	for _, e := range entries {
		maxRetries := strconv.Itoa(e.MaxRetries)
		if e.MaxRetries == taxonomy.Unbounded {
			maxRetries = "unbounded"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\t%s\t%s\n",
			e.Code, e.Category, e.Status, e.RetrySafe, maxRetries, e.Strategy, e.Message)
	}
	return w.Flush()
}
