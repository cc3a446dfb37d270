/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package main

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gitversion.dev/gitversion/oracle"
)

func init() {
	var flagProject string
	var flagCommittish string
	var flagFormat string
	var flagField string
	var flagHeightOffset int
	var flagHeightOffsetSet bool
	var flagPublicRelease bool
	var flagPublicReleaseSet bool

	cmd := &cobra.Command{
		Use:   "get [flags]",
		Short: "Print the computed version for a project directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			opts := oracle.Options{Committish: flagCommittish}
			if flagHeightOffsetSet {
				opts.VersionHeightOffsetOverride = &flagHeightOffset
			}
			if flagPublicReleaseSet {
				opts.PublicReleaseOverride = &flagPublicRelease
			}

			dlog.Debugf(ctx, "computing version for %q at %q", flagProject, flagCommittish)

			out, err := oracle.RunForProject(flagProject, opts)
			if err != nil {
				return err
			}

			if flagField != "" {
				value, err := fieldValue(out, flagField)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			}

			return printOutput(cmd, out, flagFormat)
		},
	}

	cmd.Flags().StringVar(&flagProject, "project", ".", "Project `DIRECTORY` to compute the version for")
	cmd.Flags().StringVar(&flagCommittish, "committish", "HEAD", "Git `REF` to compute the version at")
	cmd.Flags().StringVar(&flagFormat, "format", "json", "Output `FORMAT`: json, yaml, or text")
	cmd.Flags().StringVar(&flagField, "field", "", "Print only the named output `FIELD` instead of the whole object")
	cmd.Flags().IntVar(&flagHeightOffset, "height-offset", 0, "Override the descriptor's versionHeightOffset")
	cmd.Flags().BoolVar(&flagPublicRelease, "public-release", false, "Override the publicReleaseRefSpec match result")

	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		flagHeightOffsetSet = cmd.Flags().Changed("height-offset")
		flagPublicReleaseSet = cmd.Flags().Changed("public-release")
	}

	argparser.AddCommand(cmd)
}

func printOutput(cmd *cobra.Command, out oracle.Output, format string) error {
	w := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		data, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "text":
		fmt.Fprintf(w, "%s\n", out.SemVer2)
		return nil
	default:
		return fmt.Errorf("unknown --format %q: want json, yaml, or text", format)
	}
}

// fieldValue looks up a field of Output by its Go struct field name
// (case-insensitive), for `gitversion get --field`.
func fieldValue(out oracle.Output, name string) (string, error) {
	v := reflect.ValueOf(out)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Name, name) {
			return fmt.Sprintf("%v", v.Field(i).Interface()), nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}
