package cmd

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/aurigasurvey/toolkit/src/aurinstall/internal/install"
	"github.com/aurigasurvey/toolkit/src/aurinstall/internal/ledger"
	"github.com/aurigasurvey/toolkit/src/aurinstall/internal/modulefile"
	"github.com/aurigasurvey/toolkit/src/common/cli"
	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/logs"
	"github.com/aurigasurvey/toolkit/src/common/paths"
	"github.com/aurigasurvey/toolkit/src/common/perms"
	"github.com/aurigasurvey/toolkit/src/common/version"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	log = logs.NewDefault()

	// Configuration file path
	cfgFile string

	// Flag storage
	flagRoot           string
	flagForce          bool
	flagCompile        bool
	flagNoDefault      bool
	flagKeep           bool
	flagNoWorld        bool
	flagDryRun         bool
	flagVerbose        bool
	flagACL            bool
	flagNoACL          bool
	flagUsername       string
	flagPromptPassword bool
	flagModuleHome     string
	flagModuleDir      string
	flagPython         string
	flagProducts       []string
	flagProductFile    string
)

// Linker variables - set via ldflags at build time
var (
	Version        = "dev"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "aurinstall PRODUCT VERSION",
	Short: "Auriga software installer",
	Long: `aurinstall installs Auriga survey software products into a shared
product root: it resolves the product to a repository, fetches the
requested tag or branch, builds it, writes an environment-module file
and normalizes permissions for the collaboration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		if flagVerbose {
			viper.Set("log.level", "debug")
		}
		log = cli.InitLogger("aurinstall")
		install.SetLogger(log)
		modulefile.SetLogger(log)
		perms.SetLogger(log)
		return nil
	},
	Args: cobra.MaximumNArgs(2),
	RunE: runInstall,
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
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "~/.config/auriga/aurinstall.yaml")

	rootCmd.Flags().StringVarP(&flagRoot, "root", "r", "", "Install root (default: $AURIGA_PRODUCT_ROOT)")
	rootCmd.Flags().BoolVarP(&flagForce, "force", "F", false, "Overwrite an existing install of the same version")
	rootCmd.Flags().BoolVarP(&flagCompile, "compile-c", "C", false, "Force C/C++ compile even when a Python package is detected")
	rootCmd.Flags().BoolVar(&flagNoDefault, "no-default", false, "Do not mark this version as the module default")
	rootCmd.Flags().BoolVarP(&flagKeep, "keep", "k", false, "Keep the working directory after install")
	rootCmd.Flags().BoolVar(&flagNoWorld, "no-world", false, "Strip world read access from the install")
	rootCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "t", false, "Print planned actions without executing them")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.Flags().BoolVar(&flagACL, "acl", true, "Grant the service account read access via ACLs")
	rootCmd.Flags().BoolVar(&flagNoACL, "no-acl", false, "Skip the ACL step")
	rootCmd.Flags().StringVarP(&flagUsername, "username", "U", os.Getenv("USER"), "Username for svn access")
	rootCmd.Flags().BoolVar(&flagPromptPassword, "password", false, "Prompt for an svn password")
	rootCmd.Flags().StringVarP(&flagModuleHome, "module-home", "m", "", "Modules installation (default: $MODULESHOME)")
	rootCmd.Flags().StringVarP(&flagModuleDir, "module-dir", "M", "", "Module file directory (default: <root>/modulefiles)")
	rootCmd.Flags().StringVar(&flagPython, "python", "", "Python interpreter for py builds (default: python3)")
	rootCmd.Flags().StringArrayVarP(&flagProducts, "product", "p", nil, "Extra known product as name=url (repeatable)")
	rootCmd.Flags().StringVar(&flagProductFile, "product-file", "", "YAML file with additional known products")

	cli.RegisterLogFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(historyCmd)
}

func initConfig() error {
	opts := cli.DefaultConfigOptions("aurinstall", "AURIGA")
	opts.ConfigFile = cfgFile
	return cli.InitConfig(opts)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return errors.ErrMissingArguments
	}

	cfg, err := buildConfig(args[0], args[1])
	if err != nil {
		return err
	}

	pipeline := install.NewPipeline(cfg)
	ic := pipeline.Context()

	rec := openLedger(cfg)
	if rec != nil {
		defer rec.Close()
		if err := rec.Begin(ledger.Record{
			ID:        ic.RunID,
			Product:   cfg.ProductName,
			Version:   cfg.ProductVersion,
			StartedAt: time.Now(),
		}); err != nil {
			log.Warn("Install ledger unavailable", "error", err)
			rec.Close()
			rec = nil
		}
	}

	runErr := pipeline.Run(cmd.Context())

	if rec != nil {
		status := ledger.StatusSucceeded
		switch {
		case runErr != nil:
			status = ledger.StatusFailed
		case cfg.DryRun:
			status = ledger.StatusDryRun
		}
		var url, buildType string
		if ic.Product != nil {
			url = ic.Product.FetchURL
		}
		buildType = string(ic.BuildType)
		if err := rec.Finish(ic.RunID, status, url, buildType, ic.Paths.InstallDir); err != nil {
			log.Warn("Could not update install ledger", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if ic.Product != nil {
		log.Info("Install complete", "product", ic.Product.Name,
			"version", ic.Product.BaseVersion, "dir", ic.Paths.InstallDir)
	}
	return nil
}

// buildConfig merges positional arguments, flags, configuration and
// environment into one pipeline configuration.
func buildConfig(product, productVersion string) (install.Config, error) {
	cfg := install.Config{
		ProductName:    product,
		ProductVersion: productVersion,
		Root:           flagRoot,
		ModulesHome:    flagModuleHome,
		ModuleDir:      flagModuleDir,
		Username:       flagUsername,
		Python:         flagPython,
		NerscHost:      os.Getenv("NERSC_HOST"),
		Group:          viper.GetString("group"),
		ACLAccount:     viper.GetString("acl_account"),
		Force:          flagForce,
		ForceCompile:   flagCompile,
		Keep:           flagKeep,
		NoDefault:      flagNoDefault,
		WorldReadable:  !flagNoWorld,
		EnableACL:      flagACL && !flagNoACL,
		DryRun:         flagDryRun,
		Verbose:        flagVerbose,
	}

	if cfg.Root == "" {
		cfg.Root = cli.GetExpandedString("product_root")
	}
	if cfg.ModulesHome == "" {
		cfg.ModulesHome = os.Getenv("MODULESHOME")
	}
	if cfg.Python == "" {
		cfg.Python = viper.GetString("python")
	}

	overrides, err := loadOverrides()
	if err != nil {
		return cfg, err
	}
	cfg.Overrides = overrides

	if flagPromptPassword {
		password, err := promptPassword()
		if err != nil {
			return cfg, err
		}
		cfg.Password = password
	}
	return cfg, nil
}

// loadOverrides merges known-product entries from the config file, an
// optional products file, and repeated --product flags, in that order of
// increasing precedence.
func loadOverrides() (map[string]string, error) {
	overrides := make(map[string]string)
	for name, url := range viper.GetStringMapString("known_products") {
		overrides[name] = url
	}
	if flagProductFile != "" {
		fromFile, err := install.LoadOverrides(paths.Expand(flagProductFile))
		if err != nil {
			return nil, err
		}
		for name, url := range fromFile {
			overrides[name] = url
		}
	}
	for _, entry := range flagProducts {
		name, url, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, errors.ErrBadConfig.WithMessagef(
				"--product wants name=url, got %q", entry)
		}
		overrides[name] = url
	}
	return overrides, nil
}

// promptPassword reads an svn password from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.ErrBadConfig.WithMessage("Cannot read password").WithCause(err)
	}
	return string(password), nil
}

// openLedger opens the install ledger under the product root. A missing or
// unopenable ledger never blocks an install.
func openLedger(cfg install.Config) *ledger.Ledger {
	if cfg.Root == "" {
		return nil
	}
	rec, err := ledger.Open(ledgerPath(cfg.Root))
	if err != nil {
		log.Warn("Install ledger unavailable", "error", err)
		return nil
	}
	return rec
}

func ledgerPath(root string) string {
	return root + "/.aurinstall/ledger.db"
}
