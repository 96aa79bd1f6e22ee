package version

import (
	goversion "github.com/hashicorp/go-version"
)

// will be replaced with the release version when using goreleaser
var version = "development"

// AppsignVersion returns the appsign version
func AppsignVersion() string {
	return version
}

// Semver returns the version parsed as a semantic version. Development
// builds and unparsable versions report 0.0.0.
func Semver() *goversion.Version {
	v, err := goversion.NewVersion(version)
	if err != nil {
		v, _ = goversion.NewVersion("0.0.0")
	}
	return v
}
