// Command kcalctl reads and edits the calorie journal directly on the
// configured document store.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
