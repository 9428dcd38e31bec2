package wacli

// Contract constants shared between the build pipeline and the plugins it
// consumes. Downstream tooling depends on these exact strings; change them
// only together with the composer and the plugin SDKs.
const (
	// MetadataSection is the custom section plugins embed their command
	// metadata payload in.
	MetadataSection = "wacli:cli/command-metadata@1"

	// RegistrySection is the custom section the generated registry carries
	// its component-type metadata in.
	RegistrySection = "component-type:registry"

	// RegistryInterface is the versioned interface the generated registry
	// implements.
	RegistryInterface = "wacli:cli/registry@2.0.0"

	// CommandNamespace is the package namespace of per-command interfaces.
	CommandNamespace = "wacli:cli"

	// ComponentSuffix is the filename suffix of discoverable plugins.
	ComponentSuffix = ".component.wasm"

	// RegistryArtifact is the filename of the generated registry component
	// under the build scratch directory.
	RegistryArtifact = "registry.component.wasm"
)
