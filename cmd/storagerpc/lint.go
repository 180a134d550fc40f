package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mercator-hq/storagerpc/pkg/cli"
	"mercator-hq/storagerpc/pkg/policy/manager"
	"mercator-hq/storagerpc/pkg/rpc/policy"

	"github.com/spf13/cobra"
)

var lintFlags struct {
	files  []string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy files",
	Long: `Parse policy files and report syntax errors with line numbers.

Examples:
  # Lint one file
  storagerpc lint --file war/app1/StorageSerializerPolicy.gwt.rpc

  # Lint every policy file under a resource root
  storagerpc lint --dir war

  # JSON output for CI/CD
  storagerpc lint --dir war --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return lintPolicies(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringSliceVarP(&lintFlags.files, "file", "f", nil, "policy file to validate (repeatable)")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "resource root to search for *"+manager.PolicyFileExtension+" files")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the outcome of linting one file.
type LintResult struct {
	File   string      `json:"file"`
	Valid  bool        `json:"valid"`
	Types  int         `json:"types"`
	Errors []LintIssue `json:"errors,omitempty"`
}

// LintIssue is one problem found in a file.
type LintIssue struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// LintReport is the outcome of a lint run.
type LintReport struct {
	Results []LintResult `json:"results"`
}

// Text implements cli.Texter.
func (r LintReport) Text() string {
	var b strings.Builder
	errCount := 0
	for _, res := range r.Results {
		if res.Valid {
			fmt.Fprintf(&b, "✓ %s (%d types)\n", res.File, res.Types)
			continue
		}
		for _, issue := range res.Errors {
			errCount++
			if issue.Line > 0 {
				fmt.Fprintf(&b, "✗ %s:%d: %s\n", res.File, issue.Line, issue.Message)
			} else {
				fmt.Fprintf(&b, "✗ %s: %s\n", res.File, issue.Message)
			}
		}
	}
	fmt.Fprintf(&b, "\n%d file(s), %d error(s)\n", len(r.Results), errCount)
	return b.String()
}

func (r LintReport) failed() bool {
	for _, res := range r.Results {
		if !res.Valid {
			return true
		}
	}
	return false
}

func lintPolicies(w io.Writer) error {
	format, err := cli.ParseOutputFormat(lintFlags.format)
	if err != nil {
		return err
	}

	files, err := lintTargets(lintFlags.files, lintFlags.dir)
	if err != nil {
		return err
	}

	report := LintReport{Results: make([]LintResult, 0, len(files))}
	for _, file := range files {
		report.Results = append(report.Results, lintFile(file))
	}

	if err := cli.NewFormatter(format).FormatTo(w, report); err != nil {
		return err
	}
	if report.failed() {
		return cli.NewCommandError("lint", errors.New("validation failed"))
	}
	return nil
}

func lintTargets(files []string, dir string) ([]string, error) {
	if len(files) == 0 && dir == "" {
		return nil, errors.New("either --file or --dir must be specified")
	}

	targets := append([]string(nil), files...)
	if dir != "" {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), manager.PolicyFileExtension) {
				targets = append(targets, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list policy files: %w", err)
		}
	}

	if len(targets) == 0 {
		return nil, errors.New("no policy files found")
	}
	return targets, nil
}

func lintFile(path string) LintResult {
	result := LintResult{File: path}

	p, err := readPolicyFile(path)
	if err != nil {
		issue := LintIssue{Message: err.Error()}
		var perr *policy.ParseError
		if errors.As(err, &perr) {
			issue = LintIssue{Line: perr.Line, Message: perr.Message}
		}
		result.Errors = append(result.Errors, issue)
		return result
	}

	result.Valid = true
	result.Types = p.TypeCount()
	return result
}

// readPolicyFile parses a policy file under the loader's size limit.
func readPolicyFile(path string) (*policy.FilePolicy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > manager.DefaultMaxPolicySize {
		return nil, fmt.Errorf("policy file exceeds maximum size of %d bytes", manager.DefaultMaxPolicySize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return policy.ParseBytes(data)
}
