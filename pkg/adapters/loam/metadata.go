package loam

// ComponentMetadata is the frontmatter of a component document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type ComponentMetadata struct {
	// Component is the name render actions refer to. Defaults to the file path
	// without extension, so components/wizard/secrets-idle.md is "wizard/secrets-idle".
	Component string `json:"component" mapstructure:"component"`
	// Title is prepended to the copy as a heading.
	Title string `json:"title" mapstructure:"title"`
}
