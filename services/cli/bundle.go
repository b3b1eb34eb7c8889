package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flowcheck/services/evidence"
)

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Evidence bundle operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newBundleBuildCommand())
	cmd.AddCommand(newBundleVerifyCommand())
	return cmd
}

func newBundleBuildCommand() *cobra.Command {
	var (
		runID        string
		artifactsDir string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create a signed evidence bundle from a run's artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			id, err := uuid.Parse(runID)
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			signer, err := evidence.NewSignerFromEnv()
			if err != nil {
				return err
			}
			_, err = evidence.Build(ctx, evidence.BuildConfig{
				RunID:        id,
				ArtifactsDir: artifactsDir,
				Output:       output,
				Signer:       signer,
				Stdout:       cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run the evidence belongs to")
	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "Directory containing the run's artifacts")
	cmd.Flags().StringVar(&output, "output", "", "Destination bundle file (tar.zst)")
	_ = cmd.MarkFlagRequired("run-id")
	_ = cmd.MarkFlagRequired("artifacts-dir")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newBundleVerifyCommand() *cobra.Command {
	var bundleFile string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an evidence bundle's signature and digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			signer, err := evidence.NewSignerFromEnv()
			if err != nil {
				return err
			}
			_, err = evidence.Verify(ctx, evidence.VerifyConfig{
				BundlePath: bundleFile,
				Signer:     signer,
				Stdout:     cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&bundleFile, "file", "", "Path to the bundle tar.zst")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an evidence signing key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, public, err := evidence.GenerateKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "AGE_SECRET_KEY=%s\nAGE_PUBLIC_KEY=%s\n", secret, public)
			return nil
		},
	}
}
