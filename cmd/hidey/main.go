package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/h-vien/hidey/internal/bus"
	"github.com/h-vien/hidey/internal/config"
	"github.com/h-vien/hidey/internal/control"
	"github.com/h-vien/hidey/internal/dom"
	"github.com/h-vien/hidey/internal/engine"
	"github.com/h-vien/hidey/internal/metrics"
	"github.com/h-vien/hidey/internal/rules"
	"github.com/h-vien/hidey/internal/store"
	"github.com/h-vien/hidey/internal/util"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultRules := filepath.Join(home, ".config", "hidey", "rules.yaml")

	rulesPath := flag.String("rules", defaultRules, "path to YAML rules file")
	pagePath := flag.String("page", "-", "path to the HTML page, or - for stdin")
	pageURL := flag.String("url", "", "URL the page was loaded from")
	outPath := flag.String("out", "", "write the redacted page here, - for stdout")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	check := flag.Bool("check", false, "validate the rules file and exit")
	watch := flag.Bool("watch", false, "keep running: watch the rules file and serve the control socket")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	if *check {
		cfg, err := config.Load(*rulesPath)
		if err != nil {
			exitErr(err)
		}
		fmt.Printf("%s: ok (%d rules, %d regions, %d sites)\n",
			*rulesPath, len(cfg.Rules), len(cfg.Regions), len(cfg.Sites))
		return
	}

	if *pageURL == "" {
		exitErr(errors.New("-url is required"))
	}

	st := store.New(*rulesPath, logger)
	cfg, err := st.Load()
	if err != nil {
		exitErr(fmt.Errorf("load rules: %w", err))
	}

	doc, err := loadPage(*pagePath)
	if err != nil {
		exitErr(err)
	}

	msgBus := bus.New()
	coll := metrics.NewCollector()
	eng, err := engine.New(doc, *pageURL, cfg, engine.Options{
		Logger:  logger,
		Bus:     msgBus,
		Metrics: coll,
	})
	if err != nil {
		exitErr(err)
	}
	eng.Flush()

	if !*watch {
		if err := writePage(doc, *outPath); err != nil {
			exitErr(err)
		}
		snap := coll.Snapshot()
		logger.Infof("redacted %d elements, %d overlays", snap.ElementsRedacted, snap.OverlaysActive)
		return
	}

	runDaemon(logger, st, msgBus, eng)
}

// runDaemon keeps the engine alive: rules file edits reconcile live, delete
// requests from the page flow back into the store, and the control socket
// serves status and toggles.
func runDaemon(logger *util.Logger, st *store.Store, msgBus *bus.Bus, eng *engine.Engine) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Delete-mode requests mutate the store; the file watch then feeds the
	// change back into the engine.
	msgBus.Subscribe(bus.TopicUnblurRequest, func(p any) {
		req := p.(bus.UnblurRequest)
		if err := st.RemoveSelector(req.URLPattern, req.Selector); err != nil {
			logger.Errorf("remove selector %q: %v", req.Selector, err)
		}
	})
	msgBus.Subscribe(bus.TopicRegionDelete, func(p any) {
		req := p.(bus.RegionDeleteRequest)
		if err := st.DeleteRegion(req.Region); err != nil {
			logger.Errorf("delete region: %v", err)
		}
	})

	// Picker output persists as new rules and regions.
	msgBus.Subscribe(bus.TopicElementPicked, func(p any) {
		picked := p.(bus.ElementPicked)
		rule := rules.Rule{
			URLPattern: picked.URLPattern,
			Selectors:  []string{picked.Selector},
			Enabled:    true,
			Origin:     rules.OriginUser,
		}
		if err := st.AddRule(rule); err != nil {
			logger.Errorf("add picked rule: %v", err)
		}
	})
	msgBus.Subscribe(bus.TopicRegionCreated, func(p any) {
		created := p.(bus.RegionCreated)
		if err := st.AddRegion(created.Region); err != nil {
			logger.Errorf("add region: %v", err)
		}
	})

	reload := func(reason string) error {
		logger.Infof("%s, reloading rules", reason)
		cfg, err := st.Load()
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		eng.Apply(cfg)
		return nil
	}

	ctrlSrv, err := control.NewServer(eng, logger, reload)
	if err != nil {
		exitErr(fmt.Errorf("start control server: %w", err))
	}

	errs := make(chan error, 2)
	go func() {
		errs <- st.Watch(ctx, eng.Apply)
	}()
	go func() {
		errs <- ctrlSrv.Serve(ctx)
	}()

	err = <-errs
	cancel()
	<-errs
	eng.Teardown()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("daemon exited: %v", err)
		os.Exit(1)
	}
	logger.Infof("daemon stopped")
}

func loadPage(path string) (*dom.Document, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		defer f.Close()
		r = f
	}
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

func writePage(doc *dom.Document, path string) error {
	if path == "" {
		return nil
	}
	if path == "-" {
		return doc.Render(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()
	if err := doc.Render(f); err != nil {
		return fmt.Errorf("render output: %w", err)
	}
	return nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
