// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"codeberg.org/advisoryportal/portalfe/server/utils"
)

// Options accepted after the variable name in an `env` tag.
const (
	// envOverwrite lets the variable replace a value set by defaults or YAML.
	envOverwrite = "overwrite"

	// Checks run while a variable is bound.
	checkURL         = "url"         // absolute URL with scheme and host
	checkPositive    = "positive"    // greater than zero
	checkNonNegative = "nonnegative" // zero or more
)

var (
	errInvalidEnvValue      = errors.New("invalid environment variable")
	errUnsupportedFieldType = errors.New("unsupported field type")
	errNotPositive          = errors.New("must be greater than zero")
	errNegative             = errors.New("cannot be negative")
)

// EnvVar is a configuration field bound to an environment variable through
// its `env:"NAME[,options]"` tag.
type EnvVar struct {
	Name      string // e.g. PORTAL_BACKEND_BASE_URL
	Section   string // top-level ServerConfig field, e.g. API
	Field     string
	Overwrite bool
	Check     string

	value reflect.Value
}

// Value returns the current value of the field.
func (v EnvVar) Value() any {
	return v.value.Interface()
}

// Kind reports the underlying kind of the field.
func (v EnvVar) Kind() reflect.Kind {
	return v.value.Kind()
}

// EnvVars lists every environment-bound field of cfg in declaration order.
// Setting a field through the result changes cfg.
func (cfg *ServerConfig) EnvVars() []EnvVar {
	return collectEnvVars(reflect.ValueOf(cfg).Elem(), "", nil)
}

func collectEnvVars(structValue reflect.Value, section string, out []EnvVar) []EnvVar {
	structType := structValue.Type()

	for i := range structType.NumField() {
		fieldType := structType.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		tag, ok := fieldType.Tag.Lookup("env")
		if !ok {
			if fieldType.Type.Kind() == reflect.Struct {
				nested := section
				if nested == "" {
					nested = fieldType.Name
				}

				out = collectEnvVars(structValue.Field(i), nested, out)
			}

			continue
		}

		name, options, _ := strings.Cut(tag, ",")
		envVar := EnvVar{
			Name:    name,
			Section: section,
			Field:   fieldType.Name,
			value:   structValue.Field(i),
		}

		for option := range strings.SplitSeq(options, ",") {
			switch option {
			case envOverwrite:
				envVar.Overwrite = true
			case checkURL, checkPositive, checkNonNegative:
				envVar.Check = option
			}
		}

		out = append(out, envVar)
	}

	return out
}

// ReadEnv applies the PORTAL_* environment variables to cfg.
//
// Unset and empty variables leave the field alone, as does a variable
// without the overwrite option when the field already has a value.
// Every invalid variable is reported, not just the first.
func (cfg *ServerConfig) ReadEnv() error {
	var errs []error

	for _, envVar := range cfg.EnvVars() {
		raw := strings.TrimSpace(os.Getenv(envVar.Name))
		if raw == "" {
			continue
		}

		if !envVar.Overwrite && !envVar.value.IsZero() {
			continue
		}

		if err := envVar.set(raw); err != nil {
			errs = append(errs, fmt.Errorf("%w %s=%q (%s.%s): %w",
				errInvalidEnvValue, envVar.Name, raw, envVar.Section, envVar.Field, err))
		}
	}

	return errors.Join(errs...)
}

// set parses raw into the field after running the field's check.
func (v EnvVar) set(raw string) error {
	switch v.value.Interface().(type) {
	case string:
		if v.Check == checkURL {
			parsed, err := utils.ParseURL(raw, v.Field)
			if err != nil {
				return err
			}

			raw = parsed.String()
		}

		v.value.SetString(raw)

	case time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}

		if err := v.checkSign(float64(d)); err != nil {
			return err
		}

		v.value.SetInt(int64(d))

	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}

		if err := v.checkSign(float64(n)); err != nil {
			return err
		}

		v.value.SetInt(int64(n))

	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}

		if err := v.checkSign(f); err != nil {
			return err
		}

		v.value.SetFloat(f)

	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		v.value.SetBool(b)

	case []string:
		v.value.Set(reflect.ValueOf(splitList(raw)))

	default:
		return fmt.Errorf("%w %s", errUnsupportedFieldType, v.value.Type())
	}

	return nil
}

func (v EnvVar) checkSign(n float64) error {
	switch {
	case v.Check == checkPositive && n <= 0:
		return errNotPositive
	case v.Check == checkNonNegative && n < 0:
		return errNegative
	}

	return nil
}

// splitList splits a comma-separated list, dropping blank items.
func splitList(raw string) []string {
	items := make([]string, 0, strings.Count(raw, ",")+1)

	for item := range strings.SplitSeq(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
