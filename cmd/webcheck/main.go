// Command webcheck runs declarative browser checks.
package main

import "github.com/devicelab-dev/webcheck-runner/pkg/cli"

func main() {
	cli.Execute()
}
