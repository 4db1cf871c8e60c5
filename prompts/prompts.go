package prompts

import _ "embed"

// Embedded prompt files

//go:embed document_context.txt
var documentContext string

//go:embed transcript_context.txt
var transcriptContext string

//go:embed title_generator.txt
var titleGenerator string

func DocumentContext() string   { return documentContext }
func TranscriptContext() string { return transcriptContext }
func TitleGenerator() string    { return titleGenerator }
