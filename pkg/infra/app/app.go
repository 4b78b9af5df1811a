// Package app 基于 cobra/viper/pflag 的命令行启动器。
//
// 配置优先级由低到高：默认值、.env、配置文件、环境变量（前缀取自应用名）、
// 命令行显式指定的 flag。
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/term"
)

// CliOptions 由命令的根选项结构实现。
type CliOptions interface {
	// Flags 按分组返回 flag，用于帮助输出。
	Flags() cliflag.NamedFlagSets
	Complete() error
	// Validate 一次性报告所有非法选项。
	Validate() error
}

// RunFunc 选项就绪后执行的主逻辑。
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// App wraps a cobra root command.
type App struct {
	name     string
	short    string
	long     string
	options  CliOptions
	run      RunFunc
	dotenv   []string
	noConfig bool
	cmd      *cobra.Command
}

func WithName(name string) Option { return func(a *App) { a.name = name } }

func WithShortDescription(desc string) Option { return func(a *App) { a.short = desc } }

func WithDescription(desc string) Option { return func(a *App) { a.long = desc } }

func WithOptions(opts CliOptions) Option { return func(a *App) { a.options = opts } }

func WithRunFunc(run RunFunc) Option { return func(a *App) { a.run = run } }

// WithNoConfig 不读取配置文件与环境变量，仅使用 flag。
func WithNoConfig() Option { return func(a *App) { a.noConfig = true } }

// WithDotenv 指定启动时加载的 .env 文件，默认为工作目录下的 .env。
func WithDotenv(files ...string) Option { return func(a *App) { a.dotenv = files } }

// NewApp creates the application and its root command.
func NewApp(opts ...Option) *App {
	a := &App{
		name:   filepath.Base(os.Args[0]),
		dotenv: []string{".env"},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cmd = a.newCommand()
	return a
}

func (a *App) newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.short,
		Long:         a.long,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execute(cmd)
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	pfs := cmd.PersistentFlags()
	if !a.noConfig {
		pfs.StringP("config", "c", "", "Path to config file")
	}
	version.AddFlags(pfs)
	pfs.BoolP("help", "h", false, "Help for "+a.name)

	if a.options == nil {
		return cmd
	}

	fss := a.options.Flags()
	for _, name := range fss.Order {
		cmd.Flags().AddFlagSet(fss.FlagSets[name])
	}
	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		fmt.Fprintf(cmd.OutOrStderr(), "Usage:\n  %s\n", cmd.UseLine())
		cliflag.PrintSections(cmd.OutOrStderr(), fss, cols)
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		cliflag.PrintSections(cmd.OutOrStdout(), fss, cols)
	})
	return cmd
}

func (a *App) execute(cmd *cobra.Command) error {
	version.PrintAndExitIfRequested()

	loadDotenv(a.dotenv)
	if !a.noConfig {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}
	if a.run == nil {
		return nil
	}
	return a.run()
}

// Run executes the command and exits non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the root command.
func (a *App) Command() *cobra.Command { return a.cmd }
