package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// RateCache stores the hourly rates already fetched from a price source.
type RateCache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, key string, rate decimal.Decimal) error
}

// ReportMailer sends a computed declaration to its owner.
type ReportMailer interface {
	SendDeclaration(ctx context.Context, toEmail string, decl *models.Declaration) error
}
