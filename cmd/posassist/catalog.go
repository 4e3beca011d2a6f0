// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/loom-pos/internal/log"
	"github.com/teradata-labs/loom-pos/pkg/catalog"
	"github.com/teradata-labs/loom-pos/pkg/types"
)

var catalogSearchLimit int

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [fixture]",
	Short: "Import a YAML catalog into the SQLite catalog",
	Long: `Import products and store payment methods from a YAML fixture into the
database named by --catalog-db. Existing products are updated in place and
each store's payment methods are replaced.

Examples:
  posassist catalog import --catalog-db catalog.db
  posassist catalog import data/catalog.yaml --catalog-db catalog.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalogImport,
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the configured catalog the way the dispatcher does",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCatalogSearch,
}

func init() {
	catalogSearchCmd.Flags().IntVar(&catalogSearchLimit, "limit", 5, "maximum results")
	catalogCmd.AddCommand(catalogImportCmd, catalogSearchCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	if config.Catalog.DB == "" {
		return fmt.Errorf("--catalog-db is required")
	}
	path := config.Catalog.Fixture
	if len(args) == 1 {
		path = args[0]
	}
	fixture, err := catalog.LoadFixture(path)
	if err != nil {
		return err
	}
	db, err := catalog.OpenSQLite(cmd.Context(), config.Catalog.DB, log.Logger())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Import(cmd.Context(), fixture); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d products and %d stores into %s\n",
		len(fixture.Products), len(fixture.Stores), config.Catalog.DB)
	return nil
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	cat, _, err := openCatalog(cmd.Context(), config, log.Logger())
	if err != nil {
		return err
	}
	if c, ok := cat.(*catalog.SQLiteStore); ok {
		defer func() { _ = c.Close() }()
	}
	results, err := cat.Search(cmd.Context(), strings.Join(args, " "), catalogSearchLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}
	for _, p := range results {
		fmt.Fprintln(out, formatProduct(p, config.Store.CurrencyPlaces))
	}
	return nil
}

func formatProduct(p types.ProductInfo, places int32) string {
	line := fmt.Sprintf("%-14s %-24s %s", p.SKU, p.DisplayName, types.FormatAmount(p.BasePrice, places))
	if !p.Active {
		line += "  (inactive)"
	}
	return line
}
