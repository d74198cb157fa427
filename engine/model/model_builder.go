package model

import (
	"github.com/googlevr/tilt-brush-sub010/common"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithSource is an option builder that records where the Model came from.
//
// Parameters:
//   - version: the schema revision of the file
//   - generator: the file's asset.generator
//
// Returns:
//   - ModelBuilderOption: a function that applies the source option to a model
func WithSource(version common.SchemaVersion, generator string) ModelBuilderOption {
	return func(m *model) {
		m.version = version
		m.generator = generator
	}
}

// WithExtras is an option builder that sets the scene extras.
func WithExtras(extras map[string]string) ModelBuilderOption {
	return func(m *model) {
		if extras != nil {
			m.extras = extras
		}
	}
}

// WithRoots is an option builder that sets the top-level nodes of the Model.
//
// Parameters:
//   - roots: the root nodes
//
// Returns:
//   - ModelBuilderOption: a function that applies the roots option to a model
func WithRoots(roots []*ImportedNode) ModelBuilderOption {
	return func(m *model) {
		m.roots = roots
	}
}

// WithMeshes is an option builder that sets the decoded meshes of the Model.
//
// Parameters:
//   - meshes: the meshes the nodes refer to
//
// Returns:
//   - ModelBuilderOption: a function that applies the meshes option to a model
func WithMeshes(meshes []ImportedMesh) ModelBuilderOption {
	return func(m *model) {
		m.meshes = meshes
	}
}

// WithImportedMaterials is an option builder that sets the converted materials of the Model.
//
// Parameters:
//   - materials: the imported materials to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the imported materials option to a model
func WithImportedMaterials(materials []common.ImportedMaterial) ModelBuilderOption {
	return func(m *model) {
		m.materials = materials
	}
}

// WithImported is an option builder that copies everything from an ImportedModel.
//
// Parameters:
//   - imported: the importer output
//
// Returns:
//   - ModelBuilderOption: a function that applies the imported model to a model
func WithImported(imported *ImportedModel) ModelBuilderOption {
	return func(m *model) {
		WithName(imported.Name)(m)
		WithSource(imported.Version, imported.Generator)(m)
		WithExtras(imported.Extras)(m)
		WithRoots(imported.Roots)(m)
		WithMeshes(imported.Meshes)(m)
		WithImportedMaterials(imported.Materials)(m)
	}
}
