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

// Command gitversion computes a deterministic semantic version from a
// repository's commit history and its version.json/version.txt
// descriptors.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitversion.dev/gitversion/internal/cliutil"
)

var argparser = &cobra.Command{
	Use:   "gitversion {[flags]|SUBCOMMAND...}",
	Short: "Compute a deterministic semantic version from Git history",

	SilenceErrors: true, // main() handles the error after ExecuteContext returns
	SilenceUsage:  true, // FlagErrorFunc handles it
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
