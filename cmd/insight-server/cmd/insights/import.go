package insights

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfoodhub/insight-server/common/config"
	"github.com/openfoodhub/insight-server/common/types"
	"github.com/openfoodhub/insight-server/component"
)

var (
	importType      string
	trustAutomatic  bool
	importBatchSize int
)

func init() {
	importCmd.Flags().StringVar(&importType, "type", "", "only import insights of this type")
	importCmd.Flags().BoolVar(&trustAutomatic, "trust-automatic", false, "allow imported insights to be applied automatically")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 256, "number of insight groups imported per batch")
}

var importCmd = &cobra.Command{
	Use:   "import <jsonl>",
	Short: "import insight groups from a JSONL archive",
	Long:  "Each line of the archive is one insight group, the JSON shape served by the predict endpoint. Gzipped archives are detected by their .gz suffix.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		importer, err := newImporter(cfg)
		if err != nil {
			return err
		}

		reader, closeFn, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		filter := types.InsightType(importType)
		if filter != "" && !filter.Valid() {
			return fmt.Errorf("unknown insight type %q", filter)
		}

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

		var batch []types.ProductInsights
		total := 0
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var group types.ProductInsights
			if err := json.Unmarshal([]byte(line), &group); err != nil {
				return fmt.Errorf("malformed insight group: %w", err)
			}
			if filter != "" && group.Type != filter {
				continue
			}
			batch = append(batch, group)
			if len(batch) == importBatchSize {
				imported, err := importer.Import(cmd.Context(), batch, cfg.ProductService.ServerDomain, trustAutomatic)
				if err != nil {
					return err
				}
				total += imported
				batch = batch[:0]
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if len(batch) > 0 {
			imported, err := importer.Import(cmd.Context(), batch, cfg.ProductService.ServerDomain, trustAutomatic)
			if err != nil {
				return err
			}
			total += imported
		}

		fmt.Printf("imported %d insights\n", total)
		return nil
	},
}

func newImporter(cfg *config.Config) (component.ImporterComponent, error) {
	products, err := component.NewProductComponent(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating product component: %w", err)
	}
	return component.NewImporterComponent(cfg, products)
}

func openArchive(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, func() { _ = f.Close() }, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("opening gzip archive: %w", err)
	}
	return gz, func() {
		_ = gz.Close()
		_ = f.Close()
	}, nil
}
