package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ggbexport <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render     Export GeoGebra documents to SVG, PNG, PDF or GGB")
	fmt.Fprintln(w, "  serve      Serve exports over HTTP")
	fmt.Fprintln(w, "  doctor     Check Chrome and the engine bundle")
	fmt.Fprintln(w, "  config     Print the effective configuration")
	fmt.Fprintln(w, "  completion Generate shell completion script")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'ggbexport help <command>' for details on a specific command.")
}

func printEngineUsage(w io.Writer) {
	fmt.Fprintln(w, "Engine:")
	fmt.Fprintln(w, "      --engine <s>          Engine source: local, remote")
	fmt.Fprintln(w, "      --bundle <path>       Local engine entry document")
	fmt.Fprintln(w, "      --remote-url <url>    Remote engine entry document")
	fmt.Fprintln(w, "      --browser <path>      Chrome/Chromium binary")
	fmt.Fprintln(w, "      --no-sandbox          Disable the Chrome sandbox (containers, CI)")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel sessions (0 = auto)")
	fmt.Fprintln(w, "      --boot-timeout <d>    Engine startup timeout (e.g., 90s)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-document timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w)
}

func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show detailed timing and debug logs")
	fmt.Fprintln(w, "      --log-level <s>       debug, info, warn, error")
	fmt.Fprintln(w, "      --log-format <s>      text, json")
}

// printRenderUsage prints usage for the render command.
func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ggbexport render [input...] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export GeoGebra documents. Inputs are .ggb files or their base64")
	fmt.Fprintln(w, "encoding; with no input (or \"-\") the document is read from stdin.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file, directory, or \"-\" for stdout")
	fmt.Fprintln(w, "  -f, --format <s>          svg (default), png, pdf, ggb")
	fmt.Fprintln(w, "  -C, --command <s>         Engine command run before export (repeatable)")
	fmt.Fprintln(w, "      --width <n>           Viewport width for commands")
	fmt.Fprintln(w, "      --height <n>          Viewport height for commands")
	fmt.Fprintln(w, "      --dpi <n>             PNG resolution")
	fmt.Fprintln(w)
	printEngineUsage(w)
	printCommonUsage(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ggbexport serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve exports over HTTP:")
	fmt.Fprintln(w, "  POST /export-svg, POST /export, POST /export/{format}, GET /healthz, GET /metrics")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "  -a, --addr <addr>         Listen address (default :8080)")
	fmt.Fprintln(w, "      --max-body <n>        Maximum request body in bytes")
	fmt.Fprintln(w)
	printEngineUsage(w)
	printCommonUsage(w)
}

func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ggbexport doctor [--json] [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check Chrome, the engine entry document and the environment.")
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ggbexport config [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the effective configuration (defaults, file, GGBEXPORT_* variables) as YAML.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "render":
		printRenderUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "config":
		printConfigUsage(env.Stdout)
	case "completion":
		printCompletionUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: ggbexport version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: ggbexport help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
