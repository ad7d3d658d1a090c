package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/goodtune/refocus/internal/config"
)

var (
	validateDump bool
	validateYAML bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Refocus configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	validateCmd.Flags().BoolVar(&validateYAML, "yaml", false, "Print the effective configuration as YAML")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(os.Stdout, cfg, config.Default())
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
	}

	if validateYAML {
		fmt.Fprintln(os.Stdout)
		if err := writeYAML(os.Stdout, cfg); err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unknownKeys(v.AllKeys()), nil
}

func unknownKeys(keys []string) []string {
	valid := make(map[string]bool)
	for _, key := range config.Keys() {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range keys {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

// dumpConfig prints every section, highlighting values that differ from
// the defaults.
func dumpConfig(w io.Writer, cfg, defaultCfg *config.Config) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	redacted := *cfg
	redacted.Storage.Redis.Password = redactPassword(cfg.Storage.Redis.Password)

	dumpSection(w, reflect.ValueOf(redacted), reflect.ValueOf(*defaultCfg), "", 0, yellow, green, cyan)
}

func dumpSection(w io.Writer, value, defaultValue reflect.Value, prefix string, depth int, modifiedColor, defaultColor, sectionColor *color.Color) {
	indent := strings.Repeat("  ", depth)
	t := value.Type()

	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		field := value.Field(i)
		if field.Kind() == reflect.Struct {
			if depth == 0 {
				fmt.Fprintln(w)
			}
			_, _ = sectionColor.Fprintf(w, "%s[%s]\n", indent, path)
			dumpSection(w, field, defaultValue.Field(i), path, depth+1, modifiedColor, defaultColor, sectionColor)
			continue
		}

		dumpField(w, indent+name, field.Interface(), defaultValue.Field(i).Interface(), modifiedColor, defaultColor)
	}
}

// dumpField prints a field with color if it differs from default
func dumpField(w io.Writer, name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	if reflect.DeepEqual(value, defaultValue) {
		_, _ = defaultColor.Fprintf(w, "%s = %v\n", name, value)
	} else {
		_, _ = modifiedColor.Fprintf(w, "%s = %v  (modified from default: %v)\n", name, value, defaultValue)
	}
}

func writeYAML(w io.Writer, cfg *config.Config) error {
	redacted := *cfg
	redacted.Storage.Redis.Password = redactPassword(cfg.Storage.Redis.Password)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return err
	}
	return enc.Close()
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
