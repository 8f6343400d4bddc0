package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	transform "github.com/filestack/transformations-ui-ios-sub001"
	"github.com/filestack/transformations-ui-ios-sub001/utils"
)

const HelpBanner = `
┌┬┐┬─┐┌─┐┌┐┌┌─┐┌─┐┌─┐┬─┐┌┬┐
 │ ├┬┘├─┤│││└─┐├┤ │ │├┬┘│││
 ┴ ┴└─┴ ┴┘└┘└─┘└  └─┘┴└─┴ ┴

Non-destructive image editing.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// Supported input files.
var validExtensions = []string{".jpg", ".png", ".jpeg", ".bmp", ".gif"}

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", pipeName, "Source image, directory or URL")
	destination = flag.String("out", pipeName, "Destination image or directory")
	recipePath  = flag.String("recipe", "", "YAML recipe describing the edits")
	configPath  = flag.String("config", "", "TOML configuration file")
	storePath   = flag.String("store", "", "SQLite database keeping the edit sessions")
	docName     = flag.String("name", "", "Name of the session in the store")
	undoSteps   = flag.Int("undo", 0, "Number of committed edits to undo before rendering")
	workers     = flag.Int("conc", 0, "Number of files to process concurrently")
	quality     = flag.Int("quality", 0, "JPEG quality")
	cascade     = flag.String("cc", "", "Face detection cascade classifier")
	assets      = flag.String("assets", "", "Directory holding the sticker images")
	debug       = flag.Bool("debug", false, "Log debug information and metrics")
	dumpConf    = flag.Bool("dumpconf", false, "Print the effective configuration and exit")
	listDocs    = flag.Bool("list", false, "List the sessions kept in the store and exit")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()
	utils.SetPlain(!term.IsTerminal(int(os.Stderr.Fd())))

	conf, err := readConfig(*configPath)
	if err != nil {
		log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
	applyFlags(&conf)

	if *dumpConf {
		if err := writeConfig(os.Stdout, conf); err != nil {
			log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
		return
	}

	level := conf.level()
	if *debug {
		level = slog.LevelDebug
	}
	transform.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, conf)
	if err != nil {
		log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
	defer a.close()

	if *listDocs {
		if err := a.list(ctx, os.Stdout); err != nil {
			log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
		return
	}

	now := time.Now()
	failed := run(ctx, a)

	if *debug {
		a.printMetrics(os.Stderr)
	}
	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	if failed {
		os.Exit(1)
	}
}

// applyFlags overrides the configuration with the flags given on the command line.
func applyFlags(conf *config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "conc":
			conf.Workers = *workers
		case "quality":
			conf.Quality = *quality
		case "cc":
			conf.Cascade = *cascade
		case "assets":
			conf.Assets = *assets
		case "store":
			conf.Store = *storePath
		}
	})
	// Limit the concurrently running workers to maxWorkers.
	if conf.Workers <= 0 || conf.Workers > maxWorkers {
		conf.Workers = utils.Min(defaultConfig().Workers, maxWorkers)
	}
}

// run processes the source and reports whether any file failed.
func run(ctx context.Context, a *app) bool {
	// A URL is downloaded and processed like a regular file.
	if utils.IsValidUrl(*source) {
		err := a.processWithSpinner(ctx, *source, *destination, *docName)
		printStatus(*destination, err)
		return err != nil
	}

	var (
		fs  os.FileInfo
		err error
	)
	// Check if the source is a pipe name or a regular file.
	if *source == pipeName {
		fs, err = os.Stdin.Stat()
	} else {
		fs, err = os.Stat(*source)
	}
	if err != nil {
		log.Fatal(utils.DecorateText(fmt.Sprintf("Failed to load the source image: %v", err), utils.ErrorMessage))
	}

	switch mode := fs.Mode(); {
	case mode.IsDir():
		// Read destination file or directory.
		if _, err := os.Stat(*destination); err != nil {
			if err := os.Mkdir(*destination, 0755); err != nil {
				log.Fatal(utils.DecorateText(fmt.Sprintf("Unable to get dir stats: %v", err), utils.ErrorMessage))
			}
		}
		return processDir(ctx, a, *source, *destination)

	case mode.IsRegular() || mode&os.ModeNamedPipe != 0: // check for regular files or pipe names
		if *destination != pipeName {
			if _, err := transform.FormatOf(*destination); err != nil {
				log.Fatal(utils.DecorateText(err.Error(), utils.ErrorMessage))
			}
		}
		err := a.processWithSpinner(ctx, *source, *destination, *docName)
		printStatus(*destination, err)
		return err != nil
	}
	return false
}

// processDir processes recursively the image files of src concurrently.
func processDir(ctx context.Context, a *app, src, dest string) bool {
	var wg sync.WaitGroup
	ch := make(chan result)
	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, src, validExtensions)

	wg.Add(a.conf.Workers)
	for i := 0; i < a.conf.Workers; i++ {
		go func() {
			defer wg.Done()
			consumer(ctx, done, paths, dest, a, ch)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	failed := false
	for res := range ch {
		printStatus(res.path, res.err)
		failed = failed || res.err != nil
	}

	if err := <-errc; err != nil {
		fmt.Fprintln(os.Stderr, utils.DecorateText(err.Error(), utils.ErrorMessage))
		failed = true
	}
	return failed
}

// printStatus displays the outcome of processing one image.
func printStatus(fname string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s%s",
			utils.DecorateText("\nError processing the image", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
		)
		return
	}
	if fname != pipeName {
		fmt.Fprintf(os.Stderr, "\nThe image has been saved as: %s %s\n",
			utils.DecorateText(filepath.Base(fname), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
}
