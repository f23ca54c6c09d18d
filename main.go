// SPDX-License-Identifier: MPL-2.0

package main

import cmd "glimmer-pipeline/cmd/glimmer-build"

func main() {
	cmd.Execute()
}
