package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/config"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/database"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/model"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/parsers"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/security/validation"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/services"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

const usage = `usage: fiscal-crypt <command> [flags]

commands:
  declare   compute the capital gains declaration of a period
  value     value every platform at an instant
  history   list the stored declarations
`

type commonFlags struct {
	Fiat      string
	Platforms []string
	Offline   bool
	NoPrompt  bool
	Format    string
}

func (f *commonFlags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Fiat, "fiat", config.Cfg.FiatCurrency, "Fiat currency of the declaration")
	flagSet.StringSliceVar(&f.Platforms, "platforms", config.Cfg.Platforms, "Platforms to load")
	flagSet.BoolVar(&f.Offline, "offline", false, "Use the last stored ledger snapshots instead of calling the platforms")
	flagSet.BoolVar(&f.NoPrompt, "no-prompt", false, "Value wallets without any price at zero instead of asking")
	flagSet.StringVar(&f.Format, "format", services.FormatText, "Output format: text, json or csv")
}

func (f *commonFlags) validate() error {
	f.Fiat = strings.ToUpper(f.Fiat)
	if err := validation.ValidateCurrencyCode(f.Fiat); err != nil {
		return err
	}
	if len(f.Platforms) == 0 {
		return errors.New("at least one platform is required")
	}
	for i, p := range f.Platforms {
		f.Platforms[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return nil
}

type declareFlags struct {
	commonFlags
	Start  string
	End    string
	JSON   bool
	MailTo string
}

func (f *declareFlags) Bind(flagSet *pflag.FlagSet) {
	f.commonFlags.Bind(flagSet)
	flagSet.StringVar(&f.Start, "start", "", "First instant of the period (YYYY-MM-DD or RFC3339)")
	flagSet.StringVar(&f.End, "end", "", "Exclusive end of the period (YYYY-MM-DD or RFC3339)")
	flagSet.BoolVar(&f.JSON, "json", false, "Shorthand for --format json")
	flagSet.StringVar(&f.MailTo, "mail-to", "", "Mail the declaration to this address")
}

type valueFlags struct {
	commonFlags
	At string
}

func (f *valueFlags) Bind(flagSet *pflag.FlagSet) {
	f.commonFlags.Bind(flagSet)
	flagSet.StringVar(&f.At, "at", "", "Valuation instant (YYYY-MM-DD or RFC3339), defaults to now")
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel, config.Cfg.LogFormat)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "declare":
		err = runDeclare(ctx, os.Args[2:])
	case "value":
		err = runValue(ctx, os.Args[2:])
	case "history":
		err = runHistory(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.L.Error("fiscal-crypt failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func parseFlags(name string, args []string, bind func(*pflag.FlagSet)) error {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	bind(flagSet)
	return flagSet.Parse(args)
}

// newDeclarationService wires the database, HTTP clients, price sources and
// platforms. The returned func releases them.
func newDeclarationService(ctx context.Context, flags *commonFlags) (services.DeclarationService, func(), error) {
	if err := database.InitDB(config.Cfg.DatabasePath); err != nil {
		return nil, nil, err
	}
	db := database.DB
	closers := []func(){func() { db.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if err := utils.InitCoinGeckoIDs(config.Cfg.CoinGeckoIDsPath); err != nil {
		cleanup()
		return nil, nil, err
	}

	httpClient := utils.NewHTTPClient(config.Cfg.HTTPTimeout)
	limiter := utils.NewLimiter(config.Cfg.APIRequestsPerSecond)

	rateCache, err := services.NewRateCache(ctx)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if c, ok := rateCache.(io.Closer); ok {
		closers = append(closers, func() { c.Close() })
	}
	sources, err := services.NewPriceSources(httpClient, limiter, rateCache)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var prompt io.Reader = os.Stdin
	if flags.NoPrompt {
		prompt = nil
	}
	rates := processors.NewRateFinder(sources, services.NewManualRateFunc(db, prompt, os.Stderr))

	deps := parsers.Deps{
		HTTPClient: httpClient,
		Limiter:    limiter,
		Store:      model.NewSnapshotRepository(db),
		Offline:    flags.Offline,
	}
	service := services.NewDeclarationService(deps, rates, config.Cfg.ValuationWorkers, db, services.NewReportMailer())
	return service, cleanup, nil
}

func runDeclare(ctx context.Context, args []string) error {
	flags := &declareFlags{}
	if err := parseFlags("declare", args, flags.Bind); err != nil {
		return err
	}
	if err := flags.validate(); err != nil {
		return err
	}
	start, err := utils.ParseInstant(flags.Start)
	if err != nil {
		return err
	}
	end, err := utils.ParseInstant(flags.End)
	if err != nil {
		return err
	}
	if err := validation.ValidatePeriod(start, end); err != nil {
		return err
	}
	if flags.JSON {
		flags.Format = services.FormatJSON
	}

	service, cleanup, err := newDeclarationService(ctx, &flags.commonFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx = logger.WithLogger(ctx, logger.L.With("command", "declare"))
	decl, err := service.Declare(ctx, flags.Platforms, flags.Fiat, start, end)
	if err != nil {
		return err
	}
	if err := services.WriteDeclaration(os.Stdout, decl, flags.Format); err != nil {
		return err
	}
	if flags.MailTo != "" {
		return service.Mail(ctx, flags.MailTo, decl)
	}
	return nil
}

func runValue(ctx context.Context, args []string) error {
	flags := &valueFlags{}
	if err := parseFlags("value", args, flags.Bind); err != nil {
		return err
	}
	if err := flags.validate(); err != nil {
		return err
	}
	at := time.Now()
	if flags.At != "" {
		var err error
		if at, err = utils.ParseInstant(flags.At); err != nil {
			return err
		}
	}

	service, cleanup, err := newDeclarationService(ctx, &flags.commonFlags)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx = logger.WithLogger(ctx, logger.L.With("command", "value"))
	values, missing, err := service.PortfolioValue(ctx, flags.Platforms, flags.Fiat, at)
	if err != nil {
		return err
	}
	for _, m := range missing {
		logger.L.Warn("Wallet valued at zero", "platform", m.Platform, "pair", m.Pair, "balance", m.Balance.String())
	}
	return services.WriteValuation(os.Stdout, flags.Fiat, at, values, flags.Format)
}

func runHistory(ctx context.Context, args []string) error {
	flags := &commonFlags{}
	if err := parseFlags("history", args, flags.Bind); err != nil {
		return err
	}
	if err := flags.validate(); err != nil {
		return err
	}
	if err := database.InitDB(config.Cfg.DatabasePath); err != nil {
		return err
	}
	defer database.DB.Close()

	declarations, err := model.ListDeclarations(ctx, database.DB, flags.Fiat)
	if err != nil {
		return err
	}
	if len(declarations) == 0 {
		fmt.Fprintf(os.Stdout, "No stored declaration in %s.\n", flags.Fiat)
		return nil
	}
	for i := range declarations {
		if err := services.WriteDeclaration(os.Stdout, &declarations[i], flags.Format); err != nil {
			return err
		}
	}
	return nil
}
