package cli

// AppHelpTemplate lists the commands before the global options, the way distbuild users look for them.
const AppHelpTemplate = `DESCRIPTION:
   {{.Name}} - {{.Usage}}

USAGE:
   {{.UsageText}}

COMMANDS:{{range .VisibleCommands}}
   {{printf "%-12s" .Name}} {{.Usage}}{{end}}

GLOBAL OPTIONS:
   {{range $index, $option := .VisibleFlags}}{{if $index}}
   {{end}}{{$option}}{{end}}

VERSION:
   {{.Version}}
`
