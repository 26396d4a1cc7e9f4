package main

import (
	"fmt"
	"os"

	"mbsuggest/internal/config"
)

// options holds everything parsed from the command line
type options struct {
	cfg        config.Config
	configPath string
	trackPath  string
	list       bool
	pick       int // 1-based row to save, 0 when unset
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > config file > defaults
func parseArgs() (options, error) {
	args := os.Args[1:]

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printUsage()
			os.Exit(0)
		}
		if arg == "--init-config" {
			return options{}, initConfigFile()
		}
	}

	var opts options

	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i+1 >= len(args) {
				return options{}, fmt.Errorf("--config requires a path argument")
			}
			opts.configPath = args[i+1]
			break
		}
	}

	cfg, err := config.LoadConfigFile(opts.configPath)
	if err != nil {
		return options{}, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.configPath == "" {
		opts.configPath = config.FindConfigFile()
	}
	opts.cfg = cfg

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			opts.cfg.Verbose = true

		case "--list", "-l":
			opts.list = true

		case "--pick", "-p":
			if i+1 >= len(args) {
				return options{}, fmt.Errorf("--pick requires a row number")
			}
			i++
			var n int
			if _, err := fmt.Sscanf(args[i], "%d", &n); err != nil || n < 1 {
				return options{}, fmt.Errorf("invalid row number: %s", args[i])
			}
			opts.pick = n

		case "--config", "-c":
			i++

		default:
			if len(arg) > 0 && arg[0] == '-' {
				return options{}, fmt.Errorf("unknown flag: %s", arg)
			}
			if opts.trackPath != "" {
				return options{}, fmt.Errorf("only one audio file can be given, got %s and %s", opts.trackPath, arg)
			}
			opts.trackPath = arg
		}
	}

	if opts.trackPath == "" {
		return options{}, fmt.Errorf("an audio file is required")
	}

	return opts, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		os.Exit(0)
	}

	cfg := config.DefaultConfig()

	if err := config.SaveConfigFile(cfg, path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nYou can now edit this file to customize your settings.")
	fmt.Println("Available options:")
	fmt.Println("  musicbrainz_url: base URL of the MusicBrainz web service")
	fmt.Println("  user_agent: identifies this client to MusicBrainz")
	fmt.Println("  search_limit: 1-100 (suggestions per search)")
	fmt.Println("  timeout_seconds: 1-120 (request timeout)")
	fmt.Println("  verbose: true/false (enable detailed logging)")
	fmt.Println("  library_dir: music directory served by mbsuggest-web")
	fmt.Println("  listen_port: port used by mbsuggest-web")

	os.Exit(0)
	return nil
}

// printUsage displays the help message
func printUsage() {
	fmt.Println("mbsuggest - Fill track tags with MusicBrainz suggestions")
	fmt.Println()
	fmt.Println("Usage: mbsuggest [options] <audio_file>")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose              Show detailed output")
	fmt.Println("  -l, --list                 Print the suggestions and exit")
	fmt.Println("  -p, --pick <n>             Write suggestion n (1-based) to the file and exit")
	fmt.Println("  -c, --config <path>        Path to config file")
	fmt.Println("  -h, --help                 Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --init-config              Create a default config file")
	fmt.Println()
	fmt.Println("Config file locations (checked in order):")
	fmt.Println("  ./mbsuggest.yaml")
	fmt.Println("  ~/.config/mbsuggest/config.yaml")
	fmt.Println("  ~/.mbsuggest.yaml")
	fmt.Println()
	fmt.Println("Logging:")
	fmt.Println("  Normal mode: loading indicator shown, detailed logs saved to:")
	fmt.Println("    ~/.local/share/mbsuggest/logs/")
	fmt.Println("  Verbose mode: All output to stdout, no loading indicator, no file logging")
	fmt.Println()
	fmt.Println("Keys in the suggestions dialog:")
	fmt.Println("  up/down    move    enter/s    save    r    search again    esc/q    close")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Pick a suggestion interactively")
	fmt.Println("  mbsuggest ~/Music/Muse/03-stockholm.mp3")
	fmt.Println()
	fmt.Println("  # Show what MusicBrainz suggests without touching the file")
	fmt.Println("  mbsuggest --list ~/Music/Muse/03-stockholm.mp3")
	fmt.Println()
	fmt.Println("  # Write the best suggestion")
	fmt.Println("  mbsuggest --pick 1 ~/Music/Muse/03-stockholm.mp3")
	fmt.Println()
	fmt.Println("  # Create a config file to persist settings")
	fmt.Println("  mbsuggest --init-config")
}
