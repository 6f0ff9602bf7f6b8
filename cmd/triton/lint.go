package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fedgrid-hq/triton/pkg/cli"
	"fedgrid-hq/triton/pkg/policy"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy files",
	Long: `Validate policy YAML files for syntax and structural errors.

The lint command parses policy documents and runs the same validation
applied at registration time:
  - YAML syntax validation
  - Required fields (name, actions)
  - Condition tree structure and operators
  - Action types and parameter constraints
  - Schedule and rollback specs

Examples:
  # Lint a single file
  triton lint --file policies/qos.yaml

  # Lint a directory
  triton lint --dir policies/

  # JSON output for CI
  triton lint --dir policies/ --format json`,
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "policy file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of policy files")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// lintResult is one file's validation outcome.
type lintResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list policy files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no policy files found")
	}

	results := make([]lintResult, 0, len(files))
	failed := 0
	for _, file := range files {
		result := lintFile(file)
		if !result.Valid {
			failed++
		}
		results = append(results, result)
	}

	if lintFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, results); err != nil {
			return err
		}
	} else {
		for _, result := range results {
			if result.Valid {
				fmt.Printf("✓ %s\n", result.File)
				continue
			}
			fmt.Printf("✗ %s\n", result.File)
			for _, msg := range result.Errors {
				fmt.Printf("    %s\n", msg)
			}
		}
		fmt.Printf("\n%d file(s) checked, %d invalid\n", len(results), failed)
	}

	if failed > 0 {
		return cli.NewCommandError("lint", fmt.Errorf("%d invalid policy file(s)", failed))
	}
	return nil
}

func lintFile(path string) lintResult {
	result := lintResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("read: %v", err))
		return result
	}

	var p policy.Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("yaml: %v", err))
		return result
	}

	if err := p.Validate(); err != nil {
		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			result.Errors = append(result.Errors, verr.Errors...)
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}

	result.Valid = true
	return result
}
