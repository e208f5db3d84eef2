package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aurigasurvey/toolkit/src/common/cli"
	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/logs"
	"github.com/aurigasurvey/toolkit/src/common/perms"
	"github.com/aurigasurvey/toolkit/src/common/version"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	log = logs.NewDefault()

	cfgFile string

	flagGroup    string
	flagACL      bool
	flagOfficial bool
	flagWorld    bool
	flagDryRun   bool
	flagVerbose  bool
)

// Linker variables - set via ldflags at build time
var (
	Version        = "dev"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "aurperm DIR [DIR...]",
	Short: "Fix group ownership and permissions on Auriga install trees",
	Long: `aurperm walks each directory and applies the collaboration
access-control policy: group ownership, group read bits, setgid on
directories, and optionally ACL entries for the read-only service
account. Entries owned by other users are reported and left alone.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.MinimumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.DefaultConfigOptions("aurperm", "AURIGA")
		opts.ConfigFile = cfgFile
		if err := cli.InitConfig(opts); err != nil {
			return err
		}
		if flagVerbose {
			viper.Set("log.level", "debug")
		}
		log = cli.InitLogger("aurperm")
		perms.SetLogger(log)
		return nil
	},
	RunE: runFix,
}

// Execute runs the root command
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errors.GetExitStatus(err))
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "~/.config/auriga/aurperm.yaml")

	rootCmd.Flags().StringVarP(&flagGroup, "group", "g", "", "Collaboration group name (default: auriga)")
	rootCmd.Flags().BoolVarP(&flagACL, "acl", "a", false, "Grant the service account read access via ACLs")
	rootCmd.Flags().BoolVarP(&flagOfficial, "official", "o", false, "Official install: also strip group and world write")
	rootCmd.Flags().BoolVarP(&flagWorld, "world", "w", false, "Keep world read access instead of stripping it")
	rootCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "t", false, "Print planned commands without executing them")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	cli.RegisterLogFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
}

func runFix(cmd *cobra.Command, args []string) error {
	group := flagGroup
	if group == "" {
		group = viper.GetString("group")
	}

	fixer, err := perms.New(perms.Options{
		Group:         group,
		ACLAccount:    viper.GetString("acl_account"),
		EnableACL:     flagACL,
		Official:      flagOfficial,
		WorldReadable: flagWorld,
		DryRun:        flagDryRun,
		Verbose:       flagVerbose,
	})
	if err != nil {
		return err
	}

	var firstErr error
	for _, dir := range args {
		report, err := fixer.Fix(dir)
		if err != nil {
			log.Error("Failed to fix permissions", "dir", dir, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Info("Fixed permissions", "dir", dir, "examined", report.Examined,
			"changed", report.Changed, "skipped", report.Skipped,
			"warnings", report.Warnings)
	}
	return firstErr
}
