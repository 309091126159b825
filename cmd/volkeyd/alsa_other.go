//go:build !(linux && (amd64 || arm64 || riscv64 || loong64))

package main

import "fmt"

func openMixerControl(mixerName, controlName string) (Control, error) {
	return nil, fmt.Errorf("open %q on %q: %w", controlName, mixerName, ErrUnsupportedPlatform)
}
