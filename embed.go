// Package dualotp provides embedded runtime resources.
package dualotp

import (
	"embed"
	"io/fs"
)

//go:embed templates/config.yaml
var rawTemplates embed.FS

// Templates is the embedded templates filesystem with the "templates/" prefix stripped.
var Templates = mustSub(rawTemplates, "templates")

// ConfigTemplateName is the name of the default config file in Templates.
const ConfigTemplateName = "config.yaml"

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// ConfigTemplate returns the commented default config written by init.
func ConfigTemplate() []byte {
	data, err := fs.ReadFile(Templates, ConfigTemplateName)
	if err != nil {
		panic(err)
	}
	return data
}
