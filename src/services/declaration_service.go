package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/model"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/parsers"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
)

var ErrPlatformFailed = errors.New("failed to load platform")

// DeclarationService runs capital gains declarations and portfolio
// valuations over the configured platforms.
type DeclarationService interface {
	Declare(ctx context.Context, platforms []string, fiat string, start, end time.Time) (*models.Declaration, error)
	PortfolioValue(ctx context.Context, platforms []string, fiat string, at time.Time) ([]PlatformValue, []models.MissingRate, error)
	Mail(ctx context.Context, to string, decl *models.Declaration) error
}

type declarationServiceImpl struct {
	deps    parsers.Deps
	rates   processors.RateProvider
	workers int
	db      *sql.DB
	mailer  ReportMailer
}

// NewDeclarationService wires the platform clients to the engines. db may be
// nil, declarations are then not stored.
func NewDeclarationService(deps parsers.Deps, rates processors.RateProvider, workers int, db *sql.DB, mailer ReportMailer) DeclarationService {
	return &declarationServiceImpl{deps: deps, rates: rates, workers: workers, db: db, mailer: mailer}
}

func (s *declarationServiceImpl) openSessions(ctx context.Context, platforms []string) ([]*processors.Session, error) {
	sessions := make([]*processors.Session, 0, len(platforms))
	for _, name := range platforms {
		parser, err := parsers.GetParser(ctx, name, s.deps)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrPlatformFailed, name, err)
		}
		session, err := parsers.OpenSession(ctx, parser, s.deps.Store, s.rates, s.workers)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrPlatformFailed, name, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *declarationServiceImpl) Declare(ctx context.Context, platforms []string, fiat string, start, end time.Time) (*models.Declaration, error) {
	log := logger.FromContext(ctx)
	overallStartTime := time.Now()
	log.Info("Declare START", "fiat", fiat, "start", start, "end", end, "platforms", platforms, "offline", s.deps.Offline)

	sessions, err := s.openSessions(ctx, platforms)
	if err != nil {
		return nil, err
	}
	engine := make([]processors.Platform, 0, len(sessions))
	for _, session := range sessions {
		engine = append(engine, session)
	}

	decl, err := processors.NewCapitalGainsProcessor(engine).DeclarationFor(ctx, fiat, start, end)
	if err != nil {
		return nil, err
	}

	if s.db != nil {
		if err := model.SaveDeclaration(ctx, s.db, decl); err != nil {
			return nil, fmt.Errorf("error storing declaration: %w", err)
		}
	}
	if len(decl.MissingRates) > 0 {
		log.Warn("Some wallets were valued at zero for lack of a rate", "count", len(decl.MissingRates))
	}
	log.Info("Declare END", "id", decl.ID, "disposals", len(decl.Records), "duration", time.Since(overallStartTime))
	return decl, nil
}

func (s *declarationServiceImpl) PortfolioValue(ctx context.Context, platforms []string, fiat string, at time.Time) ([]PlatformValue, []models.MissingRate, error) {
	sessions, err := s.openSessions(ctx, platforms)
	if err != nil {
		return nil, nil, err
	}

	values := make([]PlatformValue, 0, len(sessions))
	var missing []models.MissingRate
	for _, session := range sessions {
		value, err := session.PortfolioValueAt(ctx, fiat, at)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to value %s: %w", session.Name(), err)
		}
		values = append(values, PlatformValue{Platform: session.Name(), Value: value})
		missing = append(missing, session.MissingRates()...)
	}
	return values, missing, nil
}

func (s *declarationServiceImpl) Mail(ctx context.Context, to string, decl *models.Declaration) error {
	if s.mailer == nil {
		return errors.New("no mailer configured")
	}
	if err := s.mailer.SendDeclaration(ctx, to, decl); err != nil {
		return fmt.Errorf("failed to mail declaration %s: %w", decl.ID, err)
	}
	return nil
}
