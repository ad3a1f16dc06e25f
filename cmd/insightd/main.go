// Command insightd is the investigative document search engine's CLI:
// collection management, local import, hybrid search, and the agent
// tool dispatch server, wired over the event-driven document pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/insightd/cmd/insightd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
