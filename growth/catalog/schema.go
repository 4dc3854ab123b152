package catalog

// EntryDocument models the JSON contract for designer-authored growth kinds.
// It is shared with the schema generator so we can produce a machine-readable
// document for validation and editor tooling.
type EntryDocument struct {
	Kind            string  `json:"kind" jsonschema:"title=Growth kind,pattern=^[a-z0-9-]+$,description=Identifier clients plant and render by"`
	MaturitySeconds float64 `json:"maturitySeconds" jsonschema:"title=Maturity duration,minimum=1,description=Seconds of growth before the entity is ready to transform"`
	ResultKind      string  `json:"resultKind" jsonschema:"title=Result kind,pattern=^[a-z0-9-]+$,description=Mature object kind created when the entity transforms"`
}

// FileDefinitions represents the contents of a growth catalog file. The loader
// accepts the canonical array format authored by designers.
type FileDefinitions []EntryDocument
