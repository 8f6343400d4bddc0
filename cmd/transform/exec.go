package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	transform "github.com/filestack/transformations-ui-ios-sub001"
	"github.com/filestack/transformations-ui-ios-sub001/effects"
	"github.com/filestack/transformations-ui-ios-sub001/histstore"
	"github.com/filestack/transformations-ui-ios-sub001/recipe"
	"github.com/filestack/transformations-ui-ios-sub001/utils"
)

// result holds the outcome of processing one image.
type result struct {
	path string
	err  error
}

// app bundles what every processed image shares.
type app struct {
	conf     config
	reg      *transform.Registry
	recipe   *recipe.Recipe
	store    *histstore.Store
	registry *prometheus.Registry
	metrics  *transform.Metrics
	spinner  *utils.Spinner
}

func newApp(ctx context.Context, conf config) (*app, error) {
	var opts []effects.Option
	if conf.Assets != "" {
		opts = append(opts, effects.WithAssets(effects.DirAssets(conf.Assets)))
	}
	if conf.Cascade != "" {
		cascadeFile, err := os.ReadFile(conf.Cascade)
		if err != nil {
			return nil, fmt.Errorf("could not read the cascade file: %w", err)
		}
		opts = append(opts, effects.WithCascade(cascadeFile))
	}
	reg, err := effects.NewRegistry(opts...)
	if err != nil {
		return nil, err
	}

	a := &app{conf: conf, reg: reg, registry: prometheus.NewRegistry()}
	a.metrics = transform.NewMetrics(a.registry)

	if *recipePath != "" {
		if a.recipe, err = recipe.Load(*recipePath); err != nil {
			return nil, err
		}
	}
	if conf.Store != "" {
		if a.store, err = histstore.Open(ctx, conf.Store); err != nil {
			return nil, err
		}
	}

	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ TRANSFORM", utils.StatusMessage),
		utils.DecorateText("is rendering the image...", utils.DefaultMessage))
	a.spinner = utils.NewSpinner(spinnerText, time.Millisecond*200, true)
	a.spinner.StopMsg = fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ TRANSFORM", utils.StatusMessage),
		utils.DecorateText("is rendering the image... ✔", utils.DefaultMessage))
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			transform.Logger().Warn("close store", slog.String("error", err.Error()))
		}
	}
}

// list prints the sessions kept in the store.
func (a *app) list(ctx context.Context, w io.Writer) error {
	if a.store == nil {
		return errors.New("no store given, use the -store flag")
	}
	docs, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\n", d.Updated.Format(time.RFC3339), d.Name)
	}
	return nil
}

// walkDir starts a goroutine to walk the specified directory tree in recursive manner
// and send the path of each regular file on the string channel.
// It sends the result of the walk on the error channel.
// It terminates in case done channel is closed.
func walkDir(
	done <-chan interface{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			if !utils.Contains(srcExts, filepath.Ext(info.Name())) {
				return nil
			}
			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// consumer reads the path names from the paths channel, renders every
// image and sends the results on a new channel.
func consumer(
	ctx context.Context,
	done <-chan interface{},
	paths <-chan string,
	dest string,
	a *app,
	res chan<- result,
) {
	for src := range paths {
		out := filepath.Join(dest, filepath.Base(src))
		name := ""
		if *docName != "" {
			name = *docName + "/" + filepath.Base(src)
		}
		err := a.process(ctx, src, out, name)

		select {
		case <-done:
			return
		case res <- result{
			path: src,
			err:  err,
		}:
		}
	}
}

// processWithSpinner processes a single image while showing the progress indicator.
func (a *app) processWithSpinner(ctx context.Context, in, out, name string) error {
	go func() {
		// Restore the cursor visibility on interruption.
		<-ctx.Done()
		a.spinner.RestoreCursor()
	}()

	a.spinner.Start()
	err := a.process(ctx, in, out, name)
	a.spinner.Stop()
	return err
}

// process renders one image through an edit session and writes the result.
// With a store the session is resumed when it exists and saved afterwards.
func (a *app) process(ctx context.Context, in, out, name string) error {
	src, err := a.source(ctx, in)
	if err != nil {
		return err
	}
	sess, err := a.session(ctx, src, name)
	if err != nil {
		return err
	}

	for i := 0; i < *undoSteps; i++ {
		if err := sess.Undo(); err != nil {
			if errors.Is(err, transform.ErrNothingToUndo) {
				break
			}
			transform.Logger().Warn("undo", slog.String("image", in), slog.String("error", err.Error()))
		}
	}

	img, err := sess.CurrentOutput(ctx)
	if err != nil {
		if img == nil {
			return err
		}
		// The frame is still usable: failing stages kept their last output.
		transform.Logger().Warn("render", slog.String("image", in), slog.String("error", err.Error()))
	}
	if err := a.write(img, out); err != nil {
		return err
	}

	if a.store != nil && name != "" {
		if err := a.store.Save(ctx, name, sess.Document()); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) session(ctx context.Context, src *transform.Buffer, name string) (*transform.Session, error) {
	opts := []transform.Option{
		transform.WithMetrics(a.metrics),
		transform.WithWorkers(a.conf.Workers),
		transform.WithHistoryLimit(a.conf.HistoryLimit),
		transform.WithOutputCache(a.conf.CacheSize),
	}
	provider := transform.StaticSource(src)

	if a.store != nil && name != "" {
		doc, err := a.store.Load(ctx, name)
		switch {
		case err == nil:
			transform.Logger().Info("resume session", slog.String("name", name))
			return transform.NewSessionFromDocument(ctx, provider, a.reg, doc, opts...)
		case !errors.Is(err, histstore.ErrNotFound):
			return nil, err
		}
	}

	sess, err := transform.NewSession(ctx, provider, a.reg, opts...)
	if err != nil {
		return nil, err
	}
	if a.recipe != nil {
		if _, err := a.recipe.Build(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// source loads the image from a URL, the standard input or a file.
func (a *app) source(ctx context.Context, in string) (*transform.Buffer, error) {
	switch {
	case utils.IsValidUrl(in):
		f, err := utils.DownloadImage(ctx, in)
		if err != nil {
			return nil, err
		}
		defer os.Remove(f.Name())
		defer f.Close()

		b, _, err := transform.Decode(f)
		return b, err
	case in == pipeName:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		b, _, err := transform.Decode(os.Stdin)
		return b, err
	}
	return transform.DecodeFile(in)
}

// write encodes img to out, or to the standard output as jpeg when out is the pipe name.
func (a *app) write(img *transform.Buffer, out string) error {
	if out == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		return transform.Encode(os.Stdout, img, "jpeg", a.conf.Quality)
	}
	return transform.EncodeFile(out, img, a.conf.Quality)
}

// printMetrics writes the counters collected while processing.
func (a *app) printMetrics(w io.Writer) {
	families, err := a.registry.Gather()
	if err != nil {
		transform.Logger().Warn("gather metrics", slog.String("error", err.Error()))
		return
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	fmt.Fprintln(w)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			}
			label := ""
			for _, lp := range m.GetLabel() {
				label += fmt.Sprintf("{%s=%s}", lp.GetName(), lp.GetValue())
			}
			fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), label, v)
		}
	}
}
