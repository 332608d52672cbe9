// Package configs provides the configuration templates embedded in the
// resumatch binary.
//
// The templates are used by:
//   - `resumatch config init`, which writes the user config at
//     ~/.config/resumatch/config.yaml
//   - `resumatch config init --project`, which writes .resumatch.yaml in
//     the working directory
//
// See internal/config Load for how the layers combine.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for .resumatch.yaml.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
