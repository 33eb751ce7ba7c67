// Package config resolves vigilo's on-disk configuration directory and
// loads its two configuration layers: a line-oriented KEY=VALUE file and
// a reflection-based environment-variable overlay. Grounded on the
// teacher's internal/config/envloader.go reflection pattern, reduced to
// the flat field set vigilo actually needs (no nested-struct mesh config).
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	vigerrors "github.com/vigilo-sh/vigilo/internal/errors"
)

// File holds the values recognized in the config-dir's "config" file.
type File struct {
	Ledger   string // LEDGER: override active ledger path
	CursorDB string // CURSOR_DB: third-party usage-billing database path (never dereferenced by vigilo)
}

// Env holds the values loaded from environment variables via LoadEnv.
type Env struct {
	LedgerEnv     string `env:"LEDGER_ENV"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	Tag           string `env:"TAG"`
	TimeoutSecs   int    `env:"TIMEOUT_SECS"`
	DashboardHost string `env:"DASHBOARD_HOST"`
	DashboardPort int    `env:"DASHBOARD_PORT"`
	NoColor       bool   // NO_COLOR: set by presence, not parsed as a bool (see LoadEnv)
}

// Dir resolves the config directory root: VIGILO_CONFIG_DIR if set,
// otherwise os.UserConfigDir()/vigilo.
func Dir() (string, error) {
	if v := os.Getenv("VIGILO_CONFIG_DIR"); v != "" {
		return v, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", vigerrors.Wrap(vigerrors.KindConfig, "resolving user config dir", err)
	}
	return filepath.Join(base, "vigilo"), nil
}

// LoadFile parses dir/config, a line-oriented KEY=VALUE format. Blank
// lines and lines starting with '#' are ignored. A missing file is not
// an error — it yields a zero File.
func LoadFile(dir string) (File, error) {
	var f File
	path := filepath.Join(dir, "config")
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, vigerrors.Wrap(vigerrors.KindConfig, "opening config file", err)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "LEDGER":
			f.Ledger = value
		case "CURSOR_DB":
			f.CursorDB = value
		}
	}
	if err := scanner.Err(); err != nil {
		return f, vigerrors.Wrap(vigerrors.KindConfig, "reading config file", err)
	}
	return f, nil
}

// LoadEnv populates an Env from the process environment using the `env`
// struct tags above. Unset variables leave their field at its zero value.
func LoadEnv() (Env, error) {
	var e Env
	if err := LoadFromEnv(&e); err != nil {
		return e, err
	}
	// NO_COLOR follows the no-color.org convention: any non-empty value
	// disables color, regardless of its content, so it is handled outside
	// the reflection loop rather than coerced through strconv.ParseBool.
	if v := os.Getenv("NO_COLOR"); v != "" {
		e.NoColor = true
	}
	return e, nil
}

// LoadFromEnv reads environment variables named by each field's `env`
// struct tag into the corresponding field of cfg, which must be a
// pointer to a struct. Grounded on the teacher's envloader.go reflection
// pattern, reduced to the scalar kinds vigilo's config actually uses.
func LoadFromEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return vigerrors.New(vigerrors.KindConfig, "LoadFromEnv requires a non-nil struct pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return vigerrors.New(vigerrors.KindConfig, "LoadFromEnv requires a struct pointer")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue, fieldType.Name, envTag); err != nil {
			return vigerrors.Wrap(vigerrors.KindConfig, "loading env config", err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value, fieldName, envVar string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for %s (%s): %w", fieldName, envVar, err)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s (%s): %w", fieldName, envVar, err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type %s for %s (%s)", field.Kind(), fieldName, envVar)
	}
	return nil
}

// LedgerDir resolves the effective ledger directory: LEDGER_ENV overrides
// the config file's LEDGER key, which overrides the config dir itself.
func LedgerDir(configDir string, file File, env Env) string {
	if env.LedgerEnv != "" {
		return env.LedgerEnv
	}
	if file.Ledger != "" {
		return file.Ledger
	}
	return configDir
}
