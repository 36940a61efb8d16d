// Command hoedur is a coverage-guided fuzzer for ARM Cortex-M firmware,
// built around Unicorn emulation, an edge-hash coverage bitmap, and a
// chronological MMIO access log as the unit of mutation.
package main

import "os"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
