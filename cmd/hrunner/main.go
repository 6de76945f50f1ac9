// Command hrunner runs functional HTTP testcases (hrun) and fans locust
// load tests out across CPU cores (locusts).
//
// Usage:
//
//	hrunner hrun [testcase paths...] [flags]
//	hrunner locusts -f <testcase> [--cpu-cores [N]] [locust args...]
//
// Installed under the names hrun or locusts (for example as symlinks), the
// binary runs that command directly.
package main

import (
	"os"

	"hrunner/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args))
}
