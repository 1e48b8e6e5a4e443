package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/newsleak/newsleak/pkg/config"
	"github.com/newsleak/newsleak/pkg/content"
	"github.com/newsleak/newsleak/pkg/feed"
	"github.com/newsleak/newsleak/pkg/llm"
	"github.com/newsleak/newsleak/pkg/notify"
	"github.com/newsleak/newsleak/pkg/repository"
	"github.com/newsleak/newsleak/pkg/scheduler"
	"github.com/newsleak/newsleak/pkg/service"
	"github.com/newsleak/newsleak/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Printf("[ERROR] can't load config: %v", err)
		os.Exit(1)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	setupLog(opts.Debug, opts.NoColor, cfg.LLM.APIKey)

	log.Printf("[INFO] starting newsleak version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

// run wires the pipeline and blocks until the context is canceled
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer repos.Close()

	store := service.NewStore(repos.Feed, repos.Article)

	fetcher := feed.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.RelayURL, cfg.Fetch.Retries)
	parser := feed.NewParser()
	normalizer := feed.NewNormalizer(cfg.Articles.MaxSummaryLength)
	generator := feed.NewGenerator(cfg.Server.BaseURL)

	var scraper feed.PageScraper
	if cfg.Image.ScrapeEnabled {
		scraper = content.NewHTTPExtractor(cfg.Image.ScrapeTimeout, cfg.Fetch.UserAgent)
	}
	images := feed.NewImageResolver(scraper, cfg.Image.ScrapeTimeout, cfg.Image.ScrapeInterval)

	rules, err := feed.CompileRules(classifyRules(cfg))
	if err != nil {
		return fmt.Errorf("compile classify rules: %w", err)
	}
	classifierMode := feed.ModeAuto
	if cfg.Classify.Mode == "trust" {
		classifierMode = feed.ModeTrust
	}
	classifier := feed.NewClassifier(classifierMode, rules)

	schedCfg := scheduler.Config{
		UpdateInterval: time.Duration(cfg.Schedule.UpdateInterval) * time.Minute,
		MaxWorkers:     cfg.Schedule.MaxWorkers,
	}
	if cfg.Classify.Mode == "llm" {
		schedCfg.LLMClassifier = llm.NewClassifier(llm.Config{
			Endpoint:    cfg.LLM.Endpoint,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
			Categories:  categories(cfg),
		})
	}
	if cfg.Notify.Enabled {
		schedCfg.Notifier = notify.NewWebhookNotifier(cfg.Notify.Endpoint, cfg.Notify.Timeout)
	}

	sched := scheduler.NewScheduler(store, store, fetcher, parser, images, classifier, normalizer, schedCfg)
	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(cfg, store, sched, generator, revision, debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// classifyRules converts configured rules to the classifier's form
func classifyRules(cfg *config.Config) []feed.RuleDef {
	defs := make([]feed.RuleDef, len(cfg.Classify.Rules))
	for i, rule := range cfg.Classify.Rules {
		defs[i] = feed.RuleDef{Category: rule.Category, Keywords: rule.Keywords}
	}
	return defs
}

// categories returns the category vocabulary for llm classification
func categories(cfg *config.Config) []string {
	seen := map[string]bool{feed.DefaultCategory: true}
	list := []string{feed.DefaultCategory}
	for _, rule := range cfg.Classify.Rules {
		if !seen[rule.Category] {
			seen[rule.Category] = true
			list = append(list, rule.Category)
		}
	}
	if len(list) == 1 {
		for _, rule := range feed.DefaultRules() {
			list = append(list, rule.Category)
		}
	}
	return list
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(os.Stdout), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	for _, sec := range secs {
		if sec != "" {
			logOpts = append(logOpts, lgr.Secret(sec))
		}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
