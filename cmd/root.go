package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nsyszr/smsrelay/config"
	"github.com/nsyszr/smsrelay/pkg/cmd/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var c = new(config.Config)
var cmdHandler = cli.NewHandler(c)

var (
	Version   = "dev-master"
	BuildTime = "undefined"
	GitHash   = "undefined"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "smsrelay",
	Short: "SMS and voice relay for gateway devices",
	Run:   printUsage,
}

// Execute runs the relay and is called by main.main()
func Execute() {
	c.BuildTime = BuildTime
	c.BuildVersion = Version
	c.BuildHash = GitHash

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.smsrelay.yml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	} else {
		path := absPathify("$HOME")
		if _, err := os.Stat(filepath.Join(path, ".smsrelay.yml")); err != nil {
			_, _ = os.Create(filepath.Join(path, ".smsrelay.yml"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".smsrelay") // name of config file (without extension)
		viper.AddConfigPath("$HOME")     // adding home directory as first search path
	}
	viper.AutomaticEnv() // read in environment variables that match

	setDefaults(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf(`Config file not found because "%s"`, err)
		fmt.Println("")
	}

	if err := viper.Unmarshal(c); err != nil {
		log.Fatal(fmt.Sprintf("Could not read config because %s.", err))
	}
}

// setDefaults binds every setting to its environment variable. An empty
// DATABASE_URL selects the in-memory store and an empty NATS_URL disables
// NATS.
func setDefaults(v *viper.Viper) {
	defaults := []struct {
		key   string
		value interface{}
	}{
		{"PORT", 8080},
		{"HOST", ""},
		{"DATABASE_URL", ""},
		{"NATS_URL", ""},
		{"RELAY_TOKEN", ""},
		{"ACK_TIMEOUT", "16s"},
		{"REGISTRATION_TIMEOUT", 10},
		{"SESSION_TIMEOUT", 120},
		{"PING_INTERVAL", 104},
		{"PONG_TIMEOUT", 16},
		{"LOG_LEVEL", "info"},
		{"LOG_FORMAT", "text"},
		{"MIGRATE_ON_START", true},
	}
	for _, d := range defaults {
		_ = v.BindEnv(d.key)
		v.SetDefault(d.key, d.value)
	}
}

func absPathify(inPath string) string {
	if strings.HasPrefix(inPath, "$HOME") {
		inPath = userHomeDir() + inPath[5:]
	}

	if strings.HasPrefix(inPath, "$") {
		end := strings.Index(inPath, string(os.PathSeparator))
		inPath = os.Getenv(inPath[1:end]) + inPath[end:]
	}

	if filepath.IsAbs(inPath) {
		return filepath.Clean(inPath)
	}

	p, err := filepath.Abs(inPath)
	if err == nil {
		return filepath.Clean(p)
	}
	return ""
}

func userHomeDir() string {
	if runtime.GOOS == "windows" {
		home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		if home == "" {
			home = os.Getenv("USERPROFILE")
		}
		return home
	}
	return os.Getenv("HOME")
}

// printUsage is the Run of commands that only group subcommands.
func printUsage(cmd *cobra.Command, args []string) {
	fmt.Println(cmd.UsageString())
	os.Exit(2)
}
