// SPDX-License-Identifier: MIT
package build

import "testing"

func TestInitializeFillsDefaultsWhenLdflagsUnset(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	flags := GetBuildFlags()
	if flags.Name == "" {
		t.Error("Name should have a non-empty default")
	}
	if flags.Version == "" {
		t.Error("Version should have a non-empty default")
	}
}

func TestInitializeHonorsLdflagsValues(t *testing.T) {
	origName, origVersion := name, version
	defer func() { name, version = origName, origVersion }()

	name = "custom-build"
	version = "1.2.3"

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	flags := GetBuildFlags()
	if flags.Name != "custom-build" {
		t.Errorf("Name = %q, want %q", flags.Name, "custom-build")
	}
	if flags.Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", flags.Version, "1.2.3")
	}
}
