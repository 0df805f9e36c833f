package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ms05probe/internal/schema"
)

// SchemasOptions holds flags for the schemas command.
type SchemasOptions struct {
	*RootOptions
	SpecPaths []string
	Output    string
}

// SchemasResult lists the written schema files.
type SchemasResult struct {
	Output string   `json:"output"`
	Files  []string `json:"files"`
}

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemasOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "Generate JSON schemas for the reference datatypes",
		Long: `Generate one JSON schema per MS-05 reference datatype.

These are the schemas the run command validates device property values
against. Spec paths default to the configured ones.

Examples:
  ms05probe schemas --spec ./ms-05-02 --output ./schemas
  ms05probe schemas --profile lab.yaml --output ./schemas --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemas(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.SpecPaths, "spec", nil, "MS-05 spec checkout holding models/ (repeatable)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "schemas", "directory to write schemas to")

	return cmd
}

func runSchemas(opts *SchemasOptions, cmd *cobra.Command) error {
	paths := opts.SpecPaths
	if !cmd.Flags().Changed("spec") {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		paths = cfg.SpecPaths
	}
	if len(paths) == 0 {
		return NewExitError(ExitCommandError, "no spec paths: use --spec or MS05_SPEC_PATHS")
	}

	ref, err := schema.LoadReference(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load reference models", err)
	}
	files, err := schema.WriteSchemas(opts.Output, ref.Schemas)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to write schemas", err)
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd).Success(SchemasResult{Output: opts.Output, Files: files})
	}

	w := cmd.OutOrStdout()
	for _, f := range files {
		fmt.Fprintln(w, f)
	}
	fmt.Fprintf(w, "✓ Wrote %d schemas to %s\n", len(files), opts.Output)
	return nil
}
