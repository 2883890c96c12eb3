// Package entitlement decides whether a caller may run a metered tool and
// charges the usage ledger when it may.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/apperrors"
	"github.com/24f2002329/caniedit/internal/metrics"
	"github.com/24f2002329/caniedit/internal/models"
)

const (
	MsgAnonymousQuota   = "Daily limit of %d reached. Sign in to get higher limits."
	MsgUserQuota        = "Daily limit of %d reached for your plan. Upgrade to increase limits."
	MsgAnonymousPremium = "This tool is available on paid plans. Please sign in and upgrade."
	MsgUserPremium      = "This tool is available on paid plans. Please upgrade."
)

type ToolRegistry interface {
	Weight(ctx context.Context, slug string) (int, error)
	IsPremium(ctx context.Context, slug string) (bool, error)
}

type PlanResolver interface {
	ActivePlan(ctx context.Context, userID string) (*models.Plan, error)
}

type Ledger interface {
	Charge(ctx context.Context, scope models.Scope, tool string, limit, amount int) (*models.UsageRecord, error)
}

// Request describes one metered invocation. Amount overrides the tool
// weight when positive.
type Request struct {
	Tool   string
	Scope  models.Scope
	Amount int
}

type Gate struct {
	tools     ToolRegistry
	plans     PlanResolver
	ledger    Ledger
	anonLimit int
	log       *zap.Logger
}

func NewGate(tools ToolRegistry, plans PlanResolver, ledger Ledger, anonLimit int, log *zap.Logger) *Gate {
	return &Gate{tools: tools, plans: plans, ledger: ledger, anonLimit: anonLimit, log: log}
}

// Admit authorizes and charges one invocation. A successful return means
// the quota is already consumed; there is no refund if the tool later
// fails.
func (g *Gate) Admit(ctx context.Context, req Request) (*models.UsageRecord, error) {
	rec, err := g.admit(ctx, req)
	g.observe(req, err)
	return rec, err
}

func (g *Gate) admit(ctx context.Context, req Request) (*models.UsageRecord, error) {
	anonymous := req.Scope.IsAnonymous()

	// 1. --- Premium gate ---
	premium, err := g.tools.IsPremium(ctx, req.Tool)
	if err != nil {
		return nil, apperrors.Wrap(err, "tool lookup")
	}
	if premium && anonymous {
		return nil, apperrors.PaymentRequired(MsgAnonymousPremium)
	}

	// 2. --- Resolve the limit ---
	limit := g.anonLimit
	if !anonymous {
		plan, err := g.plans.ActivePlan(ctx, req.Scope.UserID)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindConfiguration {
				return nil, err
			}
			return nil, apperrors.Wrap(err, "resolve plan")
		}
		if premium && plan.IsDefault() {
			return nil, apperrors.PaymentRequired(MsgUserPremium)
		}
		limit = plan.DailyLimit
	}

	// 3. --- Resolve the cost ---
	amount := req.Amount
	if amount <= 0 {
		if amount, err = g.tools.Weight(ctx, req.Tool); err != nil {
			return nil, apperrors.Wrap(err, "tool weight")
		}
	}

	// 4. --- Charge ---
	rec, err := g.ledger.Charge(ctx, req.Scope, req.Tool, limit, amount)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Kind == apperrors.KindQuotaExceeded {
			msg := MsgUserQuota
			if anonymous {
				msg = MsgAnonymousQuota
			}
			used, _ := appErr.Metadata["used"].(int)
			return nil, apperrors.QuotaExceeded(fmt.Sprintf(msg, limit), used, limit)
		}
		return nil, apperrors.Wrap(err, "charge usage")
	}
	return rec, nil
}

func (g *Gate) observe(req Request, err error) {
	scope := "user"
	if req.Scope.IsAnonymous() {
		scope = "anonymous"
	}
	outcome := "admitted"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
	}
	metrics.AdmissionsTotal.WithLabelValues(req.Tool, scope, outcome).Inc()

	if err != nil && apperrors.KindOf(err) == apperrors.KindInternal {
		g.log.Error("Admission failed", zap.String("tool", req.Tool), zap.String("scope", req.Scope.Key()), zap.Error(err))
	}
}
